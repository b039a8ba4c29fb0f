package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidReport           = errors.New("некорректный отчёт о местоположении")
	ErrUnknownVehicle          = errors.New("транспорт не зарегистрирован")
	ErrNoPartitionForTimestamp = errors.New("нет секции истории для метки времени")
	ErrCacheUnavailable        = errors.New("кэш местоположений недоступен")
	ErrBroadcastUnavailable    = errors.New("трансляция обновлений недоступна")
	ErrStoreUnavailable        = errors.New("хранилище истории недоступно")
)

type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InvalidReportError перечисляет все нарушенные поля отчёта
type InvalidReportError struct {
	Violations []FieldViolation
}

func (e *InvalidReportError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return fmt.Sprintf("%v: %s", ErrInvalidReport, strings.Join(parts, "; "))
}

func (e *InvalidReportError) Is(target error) bool {
	return target == ErrInvalidReport
}

func (e *InvalidReportError) add(field, reason string) {
	e.Violations = append(e.Violations, FieldViolation{Field: field, Reason: reason})
}
