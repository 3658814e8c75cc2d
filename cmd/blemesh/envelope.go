package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/permissionlesstech/blemesh/pkg/utils"
)

// Envelope mínimo das mensagens do nó de demonstração. O transporte trata o
// payload como opaco; este formato existe apenas na camada do aplicativo.
//
// Layout: 16 bytes de ID da mensagem, 1 byte de flags, conteúdo.
const (
	envelopeIDSize     = 16
	envelopeHeaderSize = envelopeIDSize + 1

	flagCompressed = byte(0x01)
)

// encodeEnvelope monta o payload de uma mensagem de texto, comprimindo o
// conteúdo quando vale a pena. Retorna o payload e o ID da mensagem.
func encodeEnvelope(content []byte) ([]byte, string, error) {
	id := uuid.New()

	body, compressed, err := utils.CompressIfNeeded(content)
	if err != nil {
		return nil, "", fmt.Errorf("erro ao comprimir mensagem: %v", err)
	}

	var flags byte
	if compressed {
		flags |= flagCompressed
	}

	payload := make([]byte, 0, envelopeHeaderSize+len(body))
	payload = append(payload, id[:]...)
	payload = append(payload, flags)
	payload = append(payload, body...)

	return payload, id.String(), nil
}

// decodeEnvelope extrai o ID e o conteúdo de um payload recebido,
// descomprimindo quando a flag indica
func decodeEnvelope(payload []byte) (string, []byte, error) {
	if len(payload) < envelopeHeaderSize {
		return "", nil, fmt.Errorf("payload menor que o cabeçalho do envelope")
	}

	id, err := uuid.FromBytes(payload[:envelopeIDSize])
	if err != nil {
		return "", nil, fmt.Errorf("erro ao ler ID da mensagem: %v", err)
	}

	flags := payload[envelopeIDSize]
	content := payload[envelopeHeaderSize:]

	if flags&flagCompressed != 0 {
		content, err = utils.DecompressData(content)
		if err != nil {
			return "", nil, fmt.Errorf("erro ao descomprimir mensagem: %v", err)
		}
	}

	return id.String(), content, nil
}
