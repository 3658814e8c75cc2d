package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// PeerIDLength é o tamanho em caracteres de um identificador de peer
const PeerIDLength = 8

// Identity é a identidade local de um nó da malha: o identificador curto
// anunciado no nome local e o par de chaves cujo digest acompanha o anúncio.
// O transporte não interpreta as chaves; apenas o digest opaco circula.
type Identity struct {
	PeerID     string
	PublicKey  []byte
	PrivateKey []byte
}

// New gera uma identidade nova com identificador aleatório e par de chaves
// X25519
func New() (*Identity, error) {
	peerID, err := GeneratePeerID()
	if err != nil {
		return nil, err
	}

	publicKey, privateKey, err := generateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar par de chaves: %w", err)
	}

	return &Identity{
		PeerID:     peerID,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
	}, nil
}

// PublicKeyDigest retorna o digest SHA-256 da chave pública, o blob opaco
// carregado no campo de dados do fabricante do anúncio
func (id *Identity) PublicKeyDigest() []byte {
	digest := sha256.Sum256(id.PublicKey)
	return digest[:]
}

// GeneratePeerID gera um identificador de peer aleatório com exatamente
// PeerIDLength caracteres hexadecimais
func GeneratePeerID() (string, error) {
	raw := make([]byte, PeerIDLength/2)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("erro ao gerar identificador de peer: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// generateKeyPair gera um par de chaves X25519
func generateKeyPair() (publicKey []byte, privateKey []byte, err error) {
	privateKey = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, privateKey); err != nil {
		return nil, nil, err
	}

	// Ajustar bits conforme especificação X25519
	privateKey[0] &= 248
	privateKey[31] &= 127
	privateKey[31] |= 64

	publicKey, err = curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}

	return publicKey, privateKey, nil
}
