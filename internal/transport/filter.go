package transport

import (
	"github.com/google/uuid"

	"github.com/permissionlesstech/blemesh/pkg/utils"
	"github.com/permissionlesstech/blemesh/platform"
)

// discoveryFilter valida anúncios brutos observados durante o escaneamento e
// decide quais se tornam candidatos a peer. É uma função de decisão pura:
// não mantém estado entre anúncios e não deduplica peers já conhecidos; a
// idempotência de reconexão pertence ao gerenciador de conexões.
type discoveryFilter struct {
	serviceUUID uuid.UUID
}

func newDiscoveryFilter(serviceUUID uuid.UUID) *discoveryFilter {
	return &discoveryFilter{serviceUUID: serviceUUID}
}

// Evaluate aplica as regras de filtragem a um anúncio observado:
//
//  1. O conjunto de UUIDs de serviço anunciados deve conter o UUID bem
//     conhecido da malha (comparação case-insensitive). Dispositivos BLE
//     estrangeiros são descartados silenciosamente.
//  2. A primeira entrada de dados do fabricante reportada, se houver, é o
//     digest de chave pública do candidato. A plataforma não garante
//     ordenação entre múltiplas entradas; a semântica é "primeira
//     reportada", não "menor company id".
//  3. O nome local é o identificador candidato: deve ser não vazio,
//     diferente do identificador do próprio nó e ter exatamente
//     PeerIDLength caracteres.
//
// Retorna o identificador aceito, o digest opcional (nil se ausente) e um
// booleano de aceitação. Rejeições não são erros.
func (f *discoveryFilter) Evaluate(adv platform.Advertisement, ownPeerID string) (string, []byte, bool) {
	if !utils.ContainsUUID(adv.ServiceUUIDs, f.serviceUUID.String()) {
		return "", nil, false
	}

	var publicKeyDigest []byte
	if len(adv.ManufacturerData) > 0 {
		publicKeyDigest = adv.ManufacturerData[0].Data
	}

	peerID := adv.LocalName
	if peerID == "" || peerID == ownPeerID || len(peerID) != PeerIDLength {
		return "", nil, false
	}

	return peerID, publicKeyDigest, true
}
