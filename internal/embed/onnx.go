//go:build onnx

package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gwi.com/chat-memory/internal/utils"
)

const onnxSequenceLength = 128

// ONNX runs all-MiniLM-L6-v2 through ONNX Runtime and mean-pools the last
// hidden state over attended tokens.
type ONNX struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	vocab      *wordPieceVocab
	dimensions int
}

func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx embedder needs both a model path and a tokenizer path")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
		}
	}

	vocab, err := loadWordPieceVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}
	log.Printf("[embed] onnx model loaded from %s", cfg.ModelPath)

	return &ONNX{session: session, vocab: vocab, dimensions: cfg.Dimensions}, nil
}

func (e *ONNX) Embed(ctx context.Context, text string) ([]float32, error) {
	ids := e.vocab.encode(text, onnxSequenceLength)
	if len(ids) <= 2 {
		return nil, ErrEmptyInput
	}

	inputIDs := make([]int64, onnxSequenceLength)
	mask := make([]int64, onnxSequenceLength)
	typeIDs := make([]int64, onnxSequenceLength)
	for i, id := range ids {
		inputIDs[i] = id
		mask[i] = 1
	}

	shape := ort.NewShape(1, onnxSequenceLength)
	var inputs []ort.Value
	for _, data := range [][]int64{inputIDs, mask, typeIDs} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			destroyAll(inputs)
			return nil, fmt.Errorf("%w: failed to create input tensor: %w", ErrEmbeddingFailure, err)
		}
		inputs = append(inputs, tensor)
	}
	defer destroyAll(inputs)

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err := e.session.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: onnx inference failed: %w", ErrEmbeddingFailure, err)
	}
	defer destroyAll(outputs)

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: unexpected output tensor type %T", ErrEmbeddingFailure, outputs[0])
	}
	outShape := hidden.GetShape()
	if len(outShape) != 3 || outShape[2] != int64(e.dimensions) {
		return nil, fmt.Errorf("%w: unexpected output shape %v", ErrEmbeddingFailure, outShape)
	}

	data := hidden.GetData()
	vec := make([]float32, e.dimensions)
	for pos := 0; pos < len(ids); pos++ {
		row := data[pos*e.dimensions : (pos+1)*e.dimensions]
		for j, v := range row {
			vec[j] += v
		}
	}
	for j := range vec {
		vec[j] /= float32(len(ids))
	}

	if err := utils.Normalize(vec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	return vec, nil
}

func (e *ONNX) Dimensions() int {
	return e.dimensions
}

func (e *ONNX) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

type wordPieceVocab struct {
	ids map[string]int64
	cls int64
	sep int64
	unk int64
}

func loadWordPieceVocab(path string) (*wordPieceVocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
	}

	v := &wordPieceVocab{ids: file.Model.Vocab, cls: 101, sep: 102, unk: 100}
	if id, ok := v.ids["[CLS]"]; ok {
		v.cls = id
	}
	if id, ok := v.ids["[SEP]"]; ok {
		v.sep = id
	}
	if id, ok := v.ids["[UNK]"]; ok {
		v.unk = id
	}
	return v, nil
}

// encode returns [CLS] tokens... [SEP], truncated to maxLen ids.
func (v *wordPieceVocab) encode(text string, maxLen int) []int64 {
	ids := []int64{v.cls}
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		for _, id := range v.pieces(word) {
			if len(ids) == maxLen-1 {
				return append(ids, v.sep)
			}
			ids = append(ids, id)
		}
	}
	return append(ids, v.sep)
}

// pieces splits word greedily into the longest vocabulary prefixes, marking
// continuations with "##".
func (v *wordPieceVocab) pieces(word string) []int64 {
	if id, ok := v.ids[word]; ok {
		return []int64{id}
	}
	var out []int64
	for start := 0; start < len(word); {
		end := len(word)
		matched := false
		for ; end > start; end-- {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := v.ids[piece]; ok {
				out = append(out, id)
				matched = true
				break
			}
		}
		if !matched {
			return []int64{v.unk}
		}
		start = end
	}
	return out
}
