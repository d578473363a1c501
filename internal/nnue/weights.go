package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// TrailerSize is the length of the trailing block every weight file
// carries after its four data sections. Its contents aren't interpreted;
// its presence (and the file's exact total size) is what's validated.
const TrailerSize = 48

// section sizes, in elements, for each of the four data sections in file order.
const (
	ftWeightsCount = InputBuckets * FeatureCount * HiddenSize
	ftBiasesCount  = HiddenSize
	outWeightsCount = OutputBuckets * 2 * HiddenSize
	outBiasesCount  = OutputBuckets
)

func expectedFileSize() int64 {
	const int16Size = 2
	return int64(ftWeightsCount)*int16Size +
		int64(ftBiasesCount)*int16Size +
		int64(outWeightsCount)*int16Size +
		int64(outBiasesCount)*int16Size +
		TrailerSize
}

// LoadWeights reads a network from the headerless, byte-exact weight-file
// format: feature-transformer weights, feature-transformer biases, output
// weights, output biases (all little-endian int16), followed by a 48-byte
// trailer. The file is rejected if its total size doesn't match exactly.
func (n *Network) LoadWeights(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open weights file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat weights file: %w", err)
	}
	if info.Size() != expectedFileSize() {
		return fmt.Errorf("weights file size mismatch: expected %d bytes, got %d", expectedFileSize(), info.Size())
	}

	return n.LoadWeightsFromReader(f)
}

// LoadWeightsFromReader loads a network from an io.Reader already
// positioned at the start of the weight-file's data sections.
func (n *Network) LoadWeightsFromReader(r io.Reader) error {
	for i := range n.FTWeights {
		if err := binary.Read(r, binary.LittleEndian, &n.FTWeights[i]); err != nil {
			return fmt.Errorf("failed to read feature-transformer weights at bucket-feature %d: %w", i, err)
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &n.FTBiases); err != nil {
		return fmt.Errorf("failed to read feature-transformer biases: %w", err)
	}

	for b := 0; b < OutputBuckets; b++ {
		if err := binary.Read(r, binary.LittleEndian, &n.OutWeights[b]); err != nil {
			return fmt.Errorf("failed to read output weights at bucket %d: %w", b, err)
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &n.OutBiases); err != nil {
		return fmt.Errorf("failed to read output biases: %w", err)
	}

	trailer := make([]byte, TrailerSize)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return fmt.Errorf("failed to read trailer: %w", err)
	}

	return nil
}

// SaveWeights writes the network in the same byte-exact format LoadWeights
// reads, padding the trailer with zero bytes.
func (n *Network) SaveWeights(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create weights file: %w", err)
	}
	defer f.Close()

	for i := range n.FTWeights {
		if err := binary.Write(f, binary.LittleEndian, &n.FTWeights[i]); err != nil {
			return fmt.Errorf("failed to write feature-transformer weights at bucket-feature %d: %w", i, err)
		}
	}

	if err := binary.Write(f, binary.LittleEndian, &n.FTBiases); err != nil {
		return fmt.Errorf("failed to write feature-transformer biases: %w", err)
	}

	for b := 0; b < OutputBuckets; b++ {
		if err := binary.Write(f, binary.LittleEndian, &n.OutWeights[b]); err != nil {
			return fmt.Errorf("failed to write output weights at bucket %d: %w", b, err)
		}
	}

	if err := binary.Write(f, binary.LittleEndian, &n.OutBiases); err != nil {
		return fmt.Errorf("failed to write output biases: %w", err)
	}

	trailer := make([]byte, TrailerSize)
	if _, err := f.Write(trailer); err != nil {
		return fmt.Errorf("failed to write trailer: %w", err)
	}

	return nil
}
