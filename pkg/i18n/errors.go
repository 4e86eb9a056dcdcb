package i18n

import "errors"

var (
	ErrFailedToParseYAML = errors.New("failed to parse YAML catalogue")
	ErrInvalidCatalogue  = errors.New("invalid catalogue structure")
	ErrNoTranslations    = errors.New("no translations loaded")
)
