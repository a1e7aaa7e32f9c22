package embed

// ONNXConfig locates the model, its tokenizer.json and the ONNX Runtime
// shared library.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
	Dimensions    int
}
