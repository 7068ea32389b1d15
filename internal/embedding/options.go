package embedding

// ONNXOptions configures NewONNXEmbedder.
type ONNXOptions struct {
	ModelPath   string
	VocabPath   string // optional; hash tokenizer when empty
	LibraryPath string // optional onnxruntime shared library
	ModelID     string
	OutputName  string
	Dimensions  int
	MaxTokens   int
}

func (o *ONNXOptions) applyDefaults() {
	if o.Dimensions <= 0 {
		o.Dimensions = 384
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 256
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	if o.ModelID == "" {
		o.ModelID = "all-MiniLM-L6-v2"
	}
}
