package validate_test

import (
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/validate"
)

type model struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

func Test_Check(t *testing.T) {
	if err := validate.Check(model{Name: "bill", Count: 1}); err != nil {
		t.Fatalf("Should validate a correct model: %s", err)
	}

	err := validate.Check(model{})
	if !validate.IsFieldErrors(err) {
		t.Fatalf("Should get back field errors: %v", err)
	}

	fields := validate.GetFieldErrors(err).Fields()
	if _, exists := fields["name"]; !exists {
		t.Fatalf("Should name the failing field by its json tag: %v", fields)
	}

	if _, exists := fields["count"]; !exists {
		t.Fatalf("Should name the failing field by its json tag: %v", fields)
	}
}
