package identity

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestIdentity(t *testing.T) {
	t.Run("Identificador tem o tamanho exato", func(t *testing.T) {
		peerID, err := GeneratePeerID()
		if err != nil {
			t.Fatalf("Erro ao gerar identificador: %v", err)
		}
		if len(peerID) != PeerIDLength {
			t.Errorf("Tamanho esperado: %d, obtido: %d", PeerIDLength, len(peerID))
		}
		if _, err := hex.DecodeString(peerID); err != nil {
			t.Errorf("Identificador deveria ser hexadecimal: %s", peerID)
		}
	})

	t.Run("Identificadores são aleatórios", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			peerID, err := GeneratePeerID()
			if err != nil {
				t.Fatalf("Erro ao gerar identificador: %v", err)
			}
			if seen[peerID] {
				t.Fatalf("Identificador repetido: %s", peerID)
			}
			seen[peerID] = true
		}
	})

	t.Run("Identidade completa", func(t *testing.T) {
		id, err := New()
		if err != nil {
			t.Fatalf("Erro ao gerar identidade: %v", err)
		}

		if len(id.PeerID) != PeerIDLength {
			t.Errorf("Tamanho do identificador esperado: %d, obtido: %d", PeerIDLength, len(id.PeerID))
		}
		if len(id.PublicKey) != 32 {
			t.Errorf("Tamanho da chave pública esperado: 32, obtido: %d", len(id.PublicKey))
		}
		if len(id.PrivateKey) != 32 {
			t.Errorf("Tamanho da chave privada esperado: 32, obtido: %d", len(id.PrivateKey))
		}
	})

	t.Run("Digest da chave pública é estável", func(t *testing.T) {
		id, err := New()
		if err != nil {
			t.Fatalf("Erro ao gerar identidade: %v", err)
		}

		first := id.PublicKeyDigest()
		second := id.PublicKeyDigest()

		if len(first) != 32 {
			t.Errorf("Tamanho do digest esperado: 32, obtido: %d", len(first))
		}
		if !bytes.Equal(first, second) {
			t.Error("O digest da mesma chave deveria ser estável")
		}
	})

	t.Run("Identidades diferentes têm digests diferentes", func(t *testing.T) {
		first, err := New()
		if err != nil {
			t.Fatalf("Erro ao gerar identidade: %v", err)
		}
		second, err := New()
		if err != nil {
			t.Fatalf("Erro ao gerar identidade: %v", err)
		}

		if bytes.Equal(first.PublicKeyDigest(), second.PublicKeyDigest()) {
			t.Error("Identidades distintas não deveriam compartilhar o digest")
		}
	})
}
