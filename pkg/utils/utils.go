package utils

import (
	"github.com/google/uuid"
)

// ContainsUUID verifica se uma lista contém um UUID específico, ignorando
// diferenças de caixa e de formatação
func ContainsUUID(uuids []string, target string) bool {
	parsedTarget, err := uuid.Parse(target)
	if err != nil {
		return false
	}

	for _, raw := range uuids {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if parsed == parsedTarget {
			return true
		}
	}
	return false
}
