package domain

// Upload is a client-submitted file prior to ingestion.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        []byte
}

// UploadResult describes where an ingested upload ended up.
type UploadResult struct {
	// Key is the object key under the images store.
	Key ObjectKey `json:"key"`
	// URL is the logical URL routing to the image read path.
	URL string `json:"url"`
}
