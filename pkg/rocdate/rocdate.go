// Package rocdate converte datas do calendário da República da China (Minguo)
// usado pelo portal PCC. O ano ROC é o ano gregoriano menos 1911.
package rocdate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse converte uma data ROC (ex: "113/10/30") para time.Time gregoriano.
func Parse(dateStr string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(dateStr), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("data ROC inválida: %q", dateStr)
	}

	rocYear, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("ano ROC inválido em %q: %w", dateStr, err)
	}

	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("mês inválido em %q: %w", dateStr, err)
	}

	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("dia inválido em %q: %w", dateStr, err)
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("data ROC fora do range: %q", dateStr)
	}

	return time.Date(rocYear+1911, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// Format converte um time.Time gregoriano para a string ROC "113/10/30".
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%02d/%02d", t.Year()-1911, int(t.Month()), t.Day())
}
