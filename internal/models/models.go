package models

// ProductRecord holds the metadata returned by the backend lookup for one EAN.
// It is immutable once loaded; re-running the load stage replaces it wholesale.
type ProductRecord struct {
	Name       string   `json:"name"`
	EAN        string   `json:"ean"`
	Brand      string   `json:"brand,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// ImageSource is a candidate image discovered by the backend search,
// with provenance metadata.
type ImageSource struct {
	ImageURL     string `json:"image_url"`
	PageURL      string `json:"page_url,omitempty"`
	Title        string `json:"title,omitempty"`
	SourceDomain string `json:"source_domain,omitempty"`
}

// ProductData aggregates everything known about one catalog entry. If Error is
// set the entry failed to load and is excluded from selection and generation,
// but it is still listed so the operator can see what went wrong.
type ProductData struct {
	Product ProductRecord `json:"product"`
	Sources []ImageSource `json:"sources"`
	Error   string        `json:"error,omitempty"`
}

// ResultRow is the per-product outcome of a generation run. Exactly one row is
// produced per eligible product, in catalog order. The three pointer fields
// come from the backend's verification step and may be absent.
type ResultRow struct {
	EAN            string  `json:"ean"`
	ProductName    string  `json:"productName"`
	Description    string  `json:"description"`
	EANFromImages  *string `json:"eanFromImages,omitempty"`
	Dimensions     *string `json:"dimensions,omitempty"`
	VolumeOrWeight *string `json:"volumeOrWeight,omitempty"`
	Error          string  `json:"error,omitempty"`
}
