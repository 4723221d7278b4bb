package models

// Settings is the single board-wide settings document. It is upserted
// with merge semantics and never deleted.
type Settings struct {
	BannerURL string `bson:"bannerUrl" json:"bannerUrl"`
}
