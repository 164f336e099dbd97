package arr

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ServiceType names the flavour of *arr API an instance speaks.
type ServiceType string

const (
	Sonarr   ServiceType = "sonarr"
	Radarr   ServiceType = "radarr"
	Lidarr   ServiceType = "lidarr"
	Readarr  ServiceType = "readarr"
	Whisparr ServiceType = "whisparr"
)

// ParseServiceType resolves a configured service type name.
func ParseServiceType(value string) (ServiceType, error) {
	st := ServiceType(strings.ToLower(strings.TrimSpace(value)))
	switch st {
	case Sonarr, Radarr, Lidarr, Readarr, Whisparr:
		return st, nil
	default:
		return "", fmt.Errorf("unknown service type %q", value)
	}
}

func (s ServiceType) apiVersion() string {
	switch s {
	case Lidarr, Readarr:
		return "v1"
	default:
		return "v3"
	}
}

// Status is the normalised lifecycle state of a queue item.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusImporting   Status = "importing"
	StatusCompleted   Status = "completed"
	StatusWarning     Status = "warning"
	StatusFailed      Status = "failed"
)

// Finished reports whether the download itself has completed. Importing
// counts: the bytes are on disk and a successful import leaves the queue,
// so that departure must not read as a deleted download.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusImporting
}

// QueueItem is one normalised entry of an instance's download queue.
type QueueItem struct {
	Identity            string
	QueueID             int
	DownloadID          string
	Title               string
	Filename            string
	Category            string
	Status              Status
	EstimatedCompletion time.Time
	DownloadedBytes     int64
	TotalBytes          int64
	ErrorMessage        string
	StatusMessages      []string
	Protocol            string
	DownloadClient      string
	Indexer             string
	Monitored           bool
	ReleaseDate         time.Time
	MediaID             int
	ChildIDs            []int
}

// Messages returns the error message followed by every status message.
func (q QueueItem) Messages() []string {
	out := make([]string, 0, len(q.StatusMessages)+1)
	if msg := strings.TrimSpace(q.ErrorMessage); msg != "" {
		out = append(out, msg)
	}
	out = append(out, q.StatusMessages...)
	return out
}

// RemoveOptions controls what happens to a removed queue entry.
type RemoveOptions struct {
	RemoveFromClient bool
	Blocklist        bool
	SkipRedownload   bool
}

type queuePage struct {
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
	TotalRecords int           `json:"totalRecords"`
	Records      []queueRecord `json:"records"`
}

type statusMessage struct {
	Title    string   `json:"title"`
	Messages []string `json:"messages"`
}

type queueRecord struct {
	ID                      int             `json:"id"`
	Title                   string          `json:"title"`
	Status                  string          `json:"status"`
	TrackedDownloadStatus   string          `json:"trackedDownloadStatus"`
	TrackedDownloadState    string          `json:"trackedDownloadState"`
	StatusMessages          []statusMessage `json:"statusMessages"`
	ErrorMessage            string          `json:"errorMessage"`
	DownloadID              string          `json:"downloadId"`
	Protocol                string          `json:"protocol"`
	DownloadClient          string          `json:"downloadClient"`
	Indexer                 string          `json:"indexer"`
	OutputPath              string          `json:"outputPath"`
	Category                string          `json:"category"`
	Size                    float64         `json:"size"`
	Sizeleft                float64         `json:"sizeleft"`
	EstimatedCompletionTime *time.Time      `json:"estimatedCompletionTime"`

	SeriesID  int `json:"seriesId"`
	EpisodeID int `json:"episodeId"`
	MovieID   int `json:"movieId"`
	ArtistID  int `json:"artistId"`
	AlbumID   int `json:"albumId"`
	AuthorID  int `json:"authorId"`
	BookID    int `json:"bookId"`

	Episode *struct {
		Monitored  *bool      `json:"monitored"`
		AirDateUTC *time.Time `json:"airDateUtc"`
	} `json:"episode"`
	Movie *struct {
		Monitored       *bool      `json:"monitored"`
		DigitalRelease  *time.Time `json:"digitalRelease"`
		PhysicalRelease *time.Time `json:"physicalRelease"`
		InCinemas       *time.Time `json:"inCinemas"`
	} `json:"movie"`
	Album *struct {
		Monitored   *bool      `json:"monitored"`
		ReleaseDate *time.Time `json:"releaseDate"`
	} `json:"album"`
}

// Identity derives the stable key for a queue entry. The download client id
// survives re-ordering and re-numbering of the queue; the queue id is only a
// fallback for clients that do not report one.
func Identity(downloadID string, queueID int, title string) string {
	title = strings.TrimSpace(title)
	if id := strings.TrimSpace(downloadID); id != "" {
		return id + "|" + title
	}
	return fmt.Sprintf("queue-%d|%s", queueID, title)
}

func (r queueRecord) normalize() QueueItem {
	item := QueueItem{
		Identity:        Identity(r.DownloadID, r.ID, r.Title),
		QueueID:         r.ID,
		DownloadID:      strings.TrimSpace(r.DownloadID),
		Title:           strings.TrimSpace(r.Title),
		Category:        strings.TrimSpace(r.Category),
		Status:          mapStatus(r.Status, r.TrackedDownloadStatus, r.TrackedDownloadState),
		ErrorMessage:    strings.TrimSpace(r.ErrorMessage),
		Protocol:        r.Protocol,
		DownloadClient:  r.DownloadClient,
		Indexer:         r.Indexer,
		TotalBytes:      int64(r.Size),
		DownloadedBytes: int64(r.Size - r.Sizeleft),
		Monitored:       true,
	}
	if item.DownloadedBytes < 0 {
		item.DownloadedBytes = 0
	}
	if r.EstimatedCompletionTime != nil {
		item.EstimatedCompletion = *r.EstimatedCompletionTime
	}
	item.Filename = item.Title
	if out := strings.TrimSpace(r.OutputPath); out != "" {
		item.Filename = path.Base(strings.ReplaceAll(out, "\\", "/"))
	}
	for _, sm := range r.StatusMessages {
		if t := strings.TrimSpace(sm.Title); t != "" {
			item.StatusMessages = append(item.StatusMessages, t)
		}
		for _, m := range sm.Messages {
			if m = strings.TrimSpace(m); m != "" {
				item.StatusMessages = append(item.StatusMessages, m)
			}
		}
	}

	switch {
	case r.Episode != nil || r.SeriesID != 0:
		item.MediaID = r.SeriesID
		if r.EpisodeID != 0 {
			item.ChildIDs = []int{r.EpisodeID}
		}
		if r.Episode != nil {
			if r.Episode.Monitored != nil {
				item.Monitored = *r.Episode.Monitored
			}
			if r.Episode.AirDateUTC != nil {
				item.ReleaseDate = *r.Episode.AirDateUTC
			}
		}
	case r.Movie != nil || r.MovieID != 0:
		item.MediaID = r.MovieID
		if r.Movie != nil {
			if r.Movie.Monitored != nil {
				item.Monitored = *r.Movie.Monitored
			}
			item.ReleaseDate = earliest(r.Movie.DigitalRelease, r.Movie.PhysicalRelease, r.Movie.InCinemas)
		}
	case r.Album != nil || r.ArtistID != 0:
		item.MediaID = r.ArtistID
		if r.AlbumID != 0 {
			item.ChildIDs = []int{r.AlbumID}
		}
		if r.Album != nil {
			if r.Album.Monitored != nil {
				item.Monitored = *r.Album.Monitored
			}
			if r.Album.ReleaseDate != nil {
				item.ReleaseDate = *r.Album.ReleaseDate
			}
		}
	case r.AuthorID != 0:
		item.MediaID = r.AuthorID
		if r.BookID != 0 {
			item.ChildIDs = []int{r.BookID}
		}
	}
	return item
}

func earliest(times ...*time.Time) time.Time {
	var out time.Time
	for _, t := range times {
		if t == nil || t.IsZero() {
			continue
		}
		if out.IsZero() || t.Before(out) {
			out = *t
		}
	}
	return out
}

// mapStatus folds the three *arr status fields into one Status. Warnings win
// over in-progress import states so blocked imports stay visible.
func mapStatus(status, trackedStatus, trackedState string) Status {
	status = strings.ToLower(strings.TrimSpace(status))
	trackedStatus = strings.ToLower(strings.TrimSpace(trackedStatus))
	trackedState = strings.ToLower(strings.TrimSpace(trackedState))

	switch {
	case status == "failed" || trackedState == "failedpending" || trackedState == "failed":
		return StatusFailed
	case trackedState == "imported":
		return StatusCompleted
	case trackedStatus == "warning" || trackedStatus == "error" || status == "warning":
		return StatusWarning
	case trackedState == "importpending" || trackedState == "importing" || trackedState == "importblocked":
		return StatusImporting
	case status == "completed":
		return StatusCompleted
	case status == "queued" || status == "paused" || status == "delay" || status == "downloadclientunavailable":
		return StatusQueued
	default:
		return StatusDownloading
	}
}
