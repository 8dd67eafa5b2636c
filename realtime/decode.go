package realtime

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeArg fills out from a socket.io argument, which arrives as the generic
// JSON shape (map[string]any), and validates it.
func decodeArg(arg any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(arg); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// stringArg returns args[i] as a non-empty string.
func stringArg(args []any, i int, name string) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%w: %s is required", ErrBadPayload, name)
	}
	s, ok := args[i].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: invalid %s", ErrBadPayload, name)
	}
	return s, nil
}
