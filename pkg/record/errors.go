package record

import (
	"fmt"

	"github.com/flowkit/etl/pkg/fieldtype"
)

func errUnknownField(name string) error {
	return fmt.Errorf("no field named %q in schema", name)
}

func errTagMismatch(want, got fieldtype.Type) error {
	return fmt.Errorf("expected value of type %s, got %s", want, got)
}
