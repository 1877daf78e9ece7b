package tracker

import (
	"encoding/json"
	"net/url"

	"novytek/api/models"
)

// pagePath strips scheme, host and query from a page URL.
func pagePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func conversionData(ct models.ConversionType, contactID string) json.RawMessage {
	data, err := json.Marshal(struct {
		ConversionType models.ConversionType `json:"conversionType"`
		ContactID      string                `json:"contactId,omitempty"`
	}{ct, contactID})
	if err != nil {
		return nil
	}
	return data
}
