package models

// StoredImage describes an uploaded image. URL is what gets saved in a
// product's image_url; FullURL is always absolute.
type StoredImage struct {
	URL      string `json:"url"`
	FullURL  string `json:"full_url"`
	Filename string `json:"filename"`
}
