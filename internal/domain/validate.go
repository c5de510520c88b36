package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEntities checks required fields, numeric ranges, coordinates and
// id uniqueness. The first problem found is returned as a DataValidationError.
func ValidateEntities(e Entities) error {
	nodeIDs := make(map[string]string)

	checkNode := func(kind string, id string, v any, loc *Coordinates) error {
		if err := validateStruct(kind, id, v); err != nil {
			return err
		}
		if loc != nil && !loc.Finite() {
			return &DataValidationError{Entity: kind, ID: id, Field: "location", Reason: "coordinates must be finite numbers"}
		}
		if prev, ok := nodeIDs[id]; ok {
			return &DataValidationError{Entity: kind, ID: id, Field: "id", Reason: "duplicates " + prev + " id"}
		}
		nodeIDs[id] = kind
		return nil
	}

	for _, d := range e.Depots {
		if err := checkNode("depot", d.ID, d, d.Location); err != nil {
			return err
		}
	}
	for _, f := range e.Facilities {
		if err := checkNode("facility", f.ID, f, f.Location); err != nil {
			return err
		}
	}
	for _, c := range e.Customers {
		if err := checkNode("customer", c.ID, c, c.Location); err != nil {
			return err
		}
	}

	vehicleIDs := make(map[string]struct{}, len(e.Vehicles))
	for _, v := range e.Vehicles {
		if err := validateStruct("vehicle", v.ID, v); err != nil {
			return err
		}
		if _, ok := vehicleIDs[v.ID]; ok {
			return &DataValidationError{Entity: "vehicle", ID: v.ID, Field: "id", Reason: "duplicate vehicle id"}
		}
		vehicleIDs[v.ID] = struct{}{}
	}

	return nil
}

// ValidateChangeset checks the shape of a changeset. Reference checks against
// a baseline happen when it is applied.
func ValidateChangeset(c Changeset) error {
	for _, cu := range c.AddCustomers {
		if err := validateStruct("customer", cu.ID, cu); err != nil {
			return err
		}
		if !cu.Location.Finite() {
			return &DataValidationError{Entity: "customer", ID: cu.ID, Field: "location", Reason: "coordinates must be finite numbers"}
		}
	}
	for _, a := range c.BlockArcs {
		if err := validateStruct("arc", a.From+"->"+a.To, a); err != nil {
			return err
		}
		if a.From == a.To {
			return &DataValidationError{Entity: "arc", ID: a.From + "->" + a.To, Reason: "arc endpoints must differ"}
		}
	}
	return nil
}

func validateStruct(kind, id string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &DataValidationError{
			Entity: kind,
			ID:     id,
			Field:  strings.ToLower(fe.Field()),
			Reason: describeTag(fe),
		}
	}
	return &DataValidationError{Entity: kind, ID: id, Reason: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
