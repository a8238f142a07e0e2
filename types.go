package main

// ExportItem is one unit parsed from the WordPress export. Immutable once
// parsed; later stages only read it.
type ExportItem struct {
	Title           string
	RawBody         string
	Excerpt         string
	PublishDate     string
	Slug            string
	Status          string
	Kind            string
	ExternalID      string
	Guid            string
	Categories      []string
	FeaturedAssetID string
}

// IsPublishedPost reports whether the item proceeds to conversion.
func (it ExportItem) IsPublishedPost() bool {
	return it.Status == "publish" && it.Kind == "post"
}

// AttachmentIndex maps an attachment's external id to its resolved source
// URL. Built once per run, read-only afterwards.
type AttachmentIndex map[string]string

// ConvertedDocument is the Document Converter output for one item.
type ConvertedDocument struct {
	Body string
	// AssetURLs holds the unique external asset URLs referenced by the
	// original body, query strings stripped, in discovery order. Every
	// entry appears in Body in its local-path form.
	AssetURLs []string
}

// FetchStatus represents the outcome status of fetching one asset
type FetchStatus string

const (
	StatusFetched        FetchStatus = "fetched"
	StatusAlreadyPresent FetchStatus = "already-present"
	StatusFailed         FetchStatus = "failed"
)

// FetchOutcome tracks the outcome of fetching one asset
type FetchOutcome struct {
	SourceURL string
	LocalPath string
	Status    FetchStatus
	Error     error
}

// RunSummary reports what one migration run did.
type RunSummary struct {
	TotalItems     int
	PublishedPosts int
	Written        int
	AssetsFetched  int
	AssetsSkipped  int
	AssetsFailed   int
}
