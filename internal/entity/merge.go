package entity

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// merge overwrites the fields of target named in partial, keyed by json name.
// A present key replaces the whole field value; a null value zeroes it.
// Unknown keys are ignored.
func merge(target any, partial map[string]any) error {
	if len(partial) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "json",
		Squash:           true,
		ZeroFields:       true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(partial)
}
