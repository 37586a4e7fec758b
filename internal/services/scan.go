package services

import (
	"fmt"
	"io"
	"log"

	clamd "github.com/dutchcoders/go-clamd"
)

// Scanner checks upload streams against ClamAV before they are ingested.
// Scanning before the dedup step means an infected upload is rejected
// outright instead of deleting a blob other references may point at.
type Scanner struct {
	client *clamd.Clamd
}

func NewScanner(clamAvURL string) *Scanner {
	return &Scanner{client: clamd.NewClamd(clamAvURL)}
}

// Ping verifies the ClamAV daemon is reachable.
func (s *Scanner) Ping() error {
	return s.client.Ping()
}

// ScanStream runs the reader through ClamAV. It returns an error describing
// the detection when the content is infected, nil when clean.
func (s *Scanner) ScanStream(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	response, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	for res := range response {
		if res.Status == clamd.RES_FOUND {
			log.Printf("[SCAN] virus detected: %s", res.Description)
			return fmt.Errorf("infected content: %s", res.Description)
		}
	}
	return nil
}
