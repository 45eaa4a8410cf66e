// Package vault contiene las reglas puras de la bóveda externa: cómo una operación del libro
// se traduce en un ajuste firmado del stock por quilate.
package vault

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/goldvault-api/internal/domain/entity"
)

// Delta ajuste que una operación aplica al stock de su quilate: +amount si es depósito,
// -amount si es retiro.
func Delta(txType string, amount decimal.Decimal) decimal.Decimal {
	if txType == entity.VaultWithdrawal {
		return amount.Neg()
	}
	return amount
}

// ReverseDelta ajuste que deshace el efecto de una operación borrada.
func ReverseDelta(txType string, amount decimal.Decimal) decimal.Decimal {
	return Delta(txType, amount).Neg()
}

// SumByKarat pliega una serie de operaciones en sumas firmadas por quilate.
func SumByKarat(txns []*entity.VaultTransaction) map[int]decimal.Decimal {
	sums := make(map[int]decimal.Decimal)
	for _, t := range txns {
		sums[t.Karat] = sums[t.Karat].Add(Delta(t.Type, t.Amount))
	}
	return sums
}

// NormalizeAmount redondea los gramos a la escala con la que se persisten.
func NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(entity.AmountScale)
}
