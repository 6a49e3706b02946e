package domain

import (
	"encoding/json"
	"time"
)

// ViewportID is the fixed primary key of the single saved viewport row.
const ViewportID = 1

type Viewport struct {
	CenterLat float64   `json:"centerLat"`
	CenterLng float64   `json:"centerLng"`
	Zoom      int       `json:"zoom"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Marker struct {
	ID          int64     `json:"id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Shape is a drawn polygon, rectangle or circle. Data holds the GeoJSON-like
// feature exactly as the client produced it.
type Shape struct {
	ID          int64           `json:"id"`
	Data        json.RawMessage `json:"data"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}
