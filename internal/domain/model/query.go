package model

// ImageQuery filters the image list.
type ImageQuery struct {
	// Search matches custom_id.
	Search string
	// Ordering is "upload_date" or "-upload_date".
	Ordering string
}

// ReviewQuery filters the review list.
type ReviewQuery struct {
	AnalysisResult string
	// Ordering is one of review_date, rating, optionally prefixed with "-".
	Ordering string
}
