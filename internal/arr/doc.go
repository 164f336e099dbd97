// Package arr talks to Sonarr/Radarr/Lidarr-style ("*arr") queue APIs.
//
// Each configured instance gets its own Client carrying the base URL, API key,
// request timeout, and a token-bucket rate limiter. Raw queue records are
// normalised into QueueItem values with a stable identity and a coarse status
// the classifier understands.
package arr
