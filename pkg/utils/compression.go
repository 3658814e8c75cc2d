package utils

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// CompressionThreshold é o tamanho mínimo, em bytes, a partir do qual vale a
// pena comprimir um payload antes do envio
const CompressionThreshold = 100

// CompressData comprime dados usando o algoritmo LZ4.
// Retorna os dados comprimidos ou um erro se a compressão falhar.
func CompressData(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	zw.Apply(lz4.ChecksumOption(true))
	zw.Apply(lz4.CompressionLevelOption(lz4.Level9))

	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecompressData descomprime dados comprimidos com LZ4.
// Retorna os dados descomprimidos ou um erro se a descompressão falhar.
func DecompressData(compressedData []byte) ([]byte, error) {
	if len(compressedData) == 0 {
		return compressedData, nil
	}

	zr := lz4.NewReader(bytes.NewReader(compressedData))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// IsCompressed verifica se os dados começam com o número mágico do formato
// de frame LZ4
func IsCompressed(data []byte) bool {
	return len(data) >= 4 &&
		data[0] == 0x04 && data[1] == 0x22 && data[2] == 0x4D && data[3] == 0x18
}

// CompressIfNeeded comprime os dados apenas se forem grandes o bastante para
// se beneficiar. Retorna os dados (comprimidos ou não) e um booleano
// indicando se foram comprimidos.
func CompressIfNeeded(data []byte) ([]byte, bool, error) {
	if len(data) < CompressionThreshold {
		return data, false, nil
	}

	compressed, err := CompressData(data)
	if err != nil {
		return nil, false, err
	}

	// Não usar a versão comprimida se ela não reduzir o tamanho
	if len(compressed) >= len(data) {
		return data, false, nil
	}

	return compressed, true, nil
}
