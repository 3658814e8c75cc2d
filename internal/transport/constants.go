package transport

import (
	"errors"
	"time"
)

const (
	// UUIDs bem conhecidos do serviço mesh. Devem ser idênticos em todos os
	// peers para que a malha interopere; a comparação é sempre
	// case-insensitive.
	ServiceUUID        = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E" // UUID do serviço mesh
	CharacteristicUUID = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E" // UUID da característica de dados

	// PeerIDLength é o tamanho exato, em caracteres, de um identificador de
	// peer válido. Identificadores com qualquer outro tamanho são rejeitados
	// e nunca registrados.
	PeerIDLength = 8

	// Parâmetros da sondagem de prontidão do periférico antes do anúncio.
	// Em algumas plataformas a inicialização do hardware é assíncrona.
	DefaultReadyPollAttempts = 10
	DefaultReadyPollInterval = 500 * time.Millisecond
)

// Erros do transporte
var (
	ErrInvalidPeerID             = errors.New("identificador de peer inválido")
	ErrScannerUnavailable        = errors.New("scanner BLE não disponível nesta plataforma")
	ErrInvalidServiceUUID        = errors.New("uuid de serviço inválido")
	ErrInvalidCharacteristicUUID = errors.New("uuid de característica inválido")
)
