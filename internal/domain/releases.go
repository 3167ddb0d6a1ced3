package domain

import "encoding/json"

// ReleasePage is the /releases response.
type ReleasePage struct {
	Releases       int64          `json:"releases"`
	Pages          int            `json:"pages"`
	Page           int            `json:"page"`
	Next           *string        `json:"next"`
	Previous       *string        `json:"previous"`
	ReleasePackage map[string]any `json:"releasePackage"`
}

// Release is one stored OCDS release and the package it was published in.
type Release struct {
	ID            int64           `db:"id"`
	ReleaseID     string          `db:"release_id"`
	OCID          string          `db:"ocid"`
	PackageDataID int64           `db:"package_data_id"`
	Data          json.RawMessage `db:"data"`
}

// PackageData is the publisher metadata of a release package.
type PackageData struct {
	ID   int64           `db:"id"`
	Data json.RawMessage `db:"data"`
}

// DownloadFile is one entry of the bulk download manifest, with its URLs absolutised.
type DownloadFile map[string]any
