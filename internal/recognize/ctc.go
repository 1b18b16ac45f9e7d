package recognize

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// Charset is the recognition character set loaded from a dictionary
// file, one token per line. Index 0 is reserved for the CTC blank.
type Charset struct {
	tokens []string
}

// LoadCharset loads a dictionary file where each non-empty line is a
// token. Leading/trailing whitespace is trimmed; a UTF-8 BOM on the
// first line is removed.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: Opening user-provided dictionary file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing dictionary file: %v\n", err)
		}
	}()

	var tokens []string
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	return &Charset{tokens: tokens}, nil
}

// Size returns the number of tokens excluding the blank.
func (c *Charset) Size() int { return len(c.tokens) }

// Token returns the token for a non-blank class index (1-based, since
// class 0 is the blank).
func (c *Charset) Token(class int) string {
	i := class - 1
	if i < 0 || i >= len(c.tokens) {
		return ""
	}
	return c.tokens[i]
}

// blankIndex is the CTC blank class.
const blankIndex = 0

// DecodeGreedy decodes model output of shape [1, T, C] (or [T, C]) by
// taking the argmax class per timestep, collapsing repeats, and dropping
// blanks. The confidence is the mean probability of the emitted
// characters; 1.0 for an empty emission.
func DecodeGreedy(data []float32, shape []int64, charset *Charset) (string, float64) {
	steps, classes := outputDims(shape)
	if steps == 0 || classes == 0 || len(data) < steps*classes {
		return "", 0
	}

	var sb strings.Builder
	var probSum float64
	emitted := 0
	prev := -1
	for t := 0; t < steps; t++ {
		row := data[t*classes : (t+1)*classes]
		idx, _ := argmax(row)
		if idx != blankIndex && idx != prev {
			sb.WriteString(charset.Token(idx))
			probSum += softmaxProbOfIndex(row, idx)
			emitted++
		}
		prev = idx
	}

	if emitted == 0 {
		return "", 1.0
	}
	return sb.String(), probSum / float64(emitted)
}

// outputDims interprets the output shape as (timesteps, classes),
// tolerating a leading batch dimension of one.
func outputDims(shape []int64) (int, int) {
	switch len(shape) {
	case 3:
		return int(shape[1]), int(shape[2])
	case 2:
		return int(shape[0]), int(shape[1])
	default:
		return 0, 0
	}
}

// argmax returns the index of the max value and the value.
func argmax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, 0
	}
	idx := 0
	maxVal := v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > maxVal {
			maxVal = v[i]
			idx = i
		}
	}
	return idx, maxVal
}

// softmaxProbOfIndex computes the softmax probability of v[idx]. If the
// values already look like probabilities (sum near 1, all in [0,1]), it
// returns v[idx] directly.
func softmaxProbOfIndex(v []float32, idx int) float64 {
	if len(v) == 0 || idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	minV, maxV := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		if x < minV {
			minV = x
		}
		if x > maxV {
			maxV = x
		}
	}
	if sum > 0.99 && sum < 1.01 && minV >= 0 && maxV <= 1 {
		return float64(v[idx])
	}

	m := maxV
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - m))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-m)) / denom
}
