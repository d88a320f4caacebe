package models

// NodeInfo represents what a storage node reports about itself.
type NodeInfo struct {
	Provider      string      `json:"provider"`
	Version       string      `json:"version"`
	Uptime        string      `json:"uptime"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Storage       StorageInfo `json:"storage"`
	Disk          *DiskUsage  `json:"disk,omitempty"`
}

// StorageInfo represents stored object totals of a node.
type StorageInfo struct {
	Files     int    `json:"files"`
	BytesIn   uint64 `json:"bytes_in"`
	BytesOut  uint64 `json:"bytes_out"`
	HumanSize string `json:"human_size,omitempty"`
}

// DiskUsage represents filesystem space of a node's storage directory.
type DiskUsage struct {
	SpaceUsed      int64 `json:"space_used"`      // Bytes used
	SpaceAvailable int64 `json:"space_available"` // Bytes available
	TotalSpace     int64 `json:"total_space"`     // Total bytes
}
