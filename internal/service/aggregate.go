package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"parksync/internal/entities"
	"parksync/internal/metrics"
)

type ItemFailure = entities.ItemFailure

// Aggregate is a best-effort sum. Total covers every item that could be
// valued; Failures lists the ones that could not.
type Aggregate struct {
	Total    int64         `json:"total"`
	Failures []ItemFailure `json:"failed_items,omitempty"`
}

func (a Aggregate) Complete() bool { return len(a.Failures) == 0 }

// SumBestEffort adds value(item) over items. A failing item, or one whose
// valuation panics, is recorded as a failure and excluded from the total.
func SumBestEffort[T any](items []T, id func(T) int64, value func(T) (int64, error)) Aggregate {
	var agg Aggregate
	for _, item := range items {
		v, err := safeValue(item, value)
		if err != nil {
			agg.Failures = append(agg.Failures, ItemFailure{ID: id(item), Reason: err.Error()})
			continue
		}
		agg.Total += v
	}
	return agg
}

func safeValue[T any](item T, value func(T) (int64, error)) (v int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return value(item)
}

// reportFailures logs and counts the failures of a named aggregate.
func reportFailures(log logrus.FieldLogger, name string, agg Aggregate) {
	if agg.Complete() {
		return
	}
	metrics.ReportItemFailures(name, len(agg.Failures))
	for _, f := range agg.Failures {
		log.WithFields(logrus.Fields{"aggregate": name, "item_id": f.ID}).
			Warnf("item excluded from aggregate: %s", f.Reason)
	}
}
