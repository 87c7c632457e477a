package repository

import (
	"encoding/json"

	"github.com/docbox-nz/docbox/internal/model"
)

func jsonUnmarshalStatus(raw []byte, status *model.PresignStatus) error {
	return json.Unmarshal(raw, status)
}
