// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics provides Prometheus counters for transfers and commits.
// A CLI run has no scrape endpoint, so the counters are written to a
// node_exporter textfile at exit.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gitlab.com/tozd/go/errors"
)

// download and upload outcomes
const (
	StatusSuccess          = "success"
	StatusChecksumMismatch = "checksum_mismatch"
	StatusTransferFailed   = "transfer_failed"
	StatusCanceled         = "canceled"
	StatusError            = "error"
)

var (
	// Transfer metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updaterc_downloads_total",
			Help: "Total number of file downloads by outcome",
		},
		[]string{"status"},
	)

	downloadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "updaterc_download_retries_total",
			Help: "Total number of download attempts that were retried",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "updaterc_bytes_downloaded_total",
			Help: "Total bytes streamed from update sites",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updaterc_uploads_total",
			Help: "Total number of file uploads by outcome",
		},
		[]string{"site", "status"},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "updaterc_bytes_uploaded_total",
			Help: "Total bytes pushed to update sites",
		},
	)

	// Installation metrics
	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updaterc_commits_total",
			Help: "Total number of live tree changes by action and outcome",
		},
		[]string{"action", "status"},
	)

	refreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "updaterc_site_refresh_duration_seconds",
			Help:    "Time to fetch and merge one update site index",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"site"},
	)
)

func status(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}

// RecordDownload records a finished download job.
func RecordDownload(bytes int64, outcome string) {
	bytesDownloaded.Add(float64(bytes))
	downloadsTotal.WithLabelValues(outcome).Inc()
}

// RecordDownloadRetry records a retried download attempt.
func RecordDownloadRetry() {
	downloadRetriesTotal.Inc()
}

// RecordUpload records a pushed file.
func RecordUpload(site string, bytes int64, success bool) {
	if success {
		bytesUploaded.Add(float64(bytes))
	}
	uploadsTotal.WithLabelValues(site, status(success)).Inc()
}

// RecordCommit records a change to the live tree.
func RecordCommit(action string, success bool) {
	commitsTotal.WithLabelValues(action, status(success)).Inc()
}

// RecordRefresh records how long merging a site index took.
func RecordRefresh(site string, duration time.Duration) {
	refreshDuration.WithLabelValues(site).Observe(duration.Seconds())
}

// 💾 WriteToTextfile writes every registered metric to path in the text exposition format
func WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
