package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// singleton instance; construction registers the json tag names once.
var (
	signalValidator *validator.Validate
	validatorOnce   sync.Once
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		signalValidator = validator.New()
		// Report json field names so intake warnings match the wire format.
		signalValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return signalValidator
}

// DecodeUnits reads a JSON array of aggregation units. Unknown fields are
// rejected so a renamed field fails loudly instead of silently zeroing.
func DecodeUnits(r io.Reader) ([]*schema.AggregationUnit, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var units []*schema.AggregationUnit
	if err := dec.Decode(&units); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation units: %w", err)
	}
	return units, nil
}

// DecodeSignals reads a flat JSON array of signals, the pre-clustering wire
// form the scrub command consumes.
func DecodeSignals(r io.Reader) ([]schema.Signal, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var signals []schema.Signal
	if err := dec.Decode(&signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals: %w", err)
	}
	return signals, nil
}

// PrepareSignals runs per-record validation and the zip allowlist over a
// flat signal batch. Malformed signals are dropped with a warning and the
// batch continues; signal zips are normalized to their 5-digit form.
func PrepareSignals(signals []schema.Signal, cfg *contract.Config) []schema.Signal {
	allowed := make(map[string]struct{}, len(cfg.ZIPAllowlist))
	for _, zip := range cfg.ZIPAllowlist {
		allowed[zip] = struct{}{}
	}

	v := getValidator()
	prepared := make([]schema.Signal, 0, len(signals))
	for i := range signals {
		if err := v.Struct(&signals[i]); err != nil {
			contract.LogWarn(fmt.Sprintf("Dropping signal %d", i), err)
			continue
		}
		zip, err := schema.NormalizeZIP(signals[i].ZIP)
		if err != nil {
			contract.LogWarn(fmt.Sprintf("Dropping signal %d", i), err)
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[zip]; !ok {
				contract.LogWarn(fmt.Sprintf("Dropping signal %d", i), fmt.Errorf("zip %s is not allowlisted", zip))
				continue
			}
		}
		sig := signals[i]
		sig.ZIP = zip
		prepared = append(prepared, sig)
	}
	return prepared
}

// PrepareUnits runs per-record validation and the zip allowlist over decoded
// units. Malformed signals are dropped with a warning and the batch
// continues; a unit that loses every signal, fails window validation or
// falls outside the allowlist is dropped whole. Unit zips are normalized to
// their 5-digit form.
func PrepareUnits(units []*schema.AggregationUnit, cfg *contract.Config) []*schema.AggregationUnit {
	allowed := make(map[string]struct{}, len(cfg.ZIPAllowlist))
	for _, zip := range cfg.ZIPAllowlist {
		allowed[zip] = struct{}{}
	}

	v := getValidator()
	prepared := make([]*schema.AggregationUnit, 0, len(units))
	for _, unit := range units {
		if unit == nil {
			continue
		}

		zip, err := schema.NormalizeZIP(unit.ZIP)
		if err != nil {
			contract.LogWarn(fmt.Sprintf("Dropping unit %s", unit.ID), err)
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[zip]; !ok {
				contract.LogWarn(fmt.Sprintf("Dropping unit %s", unit.ID), fmt.Errorf("zip %s is not allowlisted", zip))
				continue
			}
		}
		if err := unit.Window.Validate(); err != nil {
			contract.LogWarn(fmt.Sprintf("Dropping unit %s", unit.ID), err)
			continue
		}

		kept := make([]schema.Signal, 0, len(unit.Signals))
		for i := range unit.Signals {
			if err := v.Struct(&unit.Signals[i]); err != nil {
				contract.LogWarn(fmt.Sprintf("Dropping signal %d of unit %s", i, unit.ID), err)
				continue
			}
			kept = append(kept, unit.Signals[i])
		}
		if len(kept) == 0 {
			contract.LogWarn(fmt.Sprintf("Dropping unit %s", unit.ID), errors.New("no valid signals remain"))
			continue
		}

		prepared = append(prepared, &schema.AggregationUnit{
			ID:                 unit.ID,
			ZIP:                zip,
			Window:             unit.Window,
			RepresentativeText: unit.RepresentativeText,
			Signals:            kept,
		})
	}
	return prepared
}
