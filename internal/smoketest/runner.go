package smoketest

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Sample vocabulary for generated events.
var (
	chores = []string{"water plants", "call mom", "pay rent", "renew passport", "buy groceries", "clean desk"}
	months = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
)

type job struct {
	user string
	text string
}

// Run executes one smoke pass: add events concurrently, list each user
// and check the count, then remove everything and check the backlog.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	if !c.Healthy(ctx) {
		return nil, fmt.Errorf("service at %s is not healthy", cfg.BaseURL)
	}

	jobs := generate(cfg)
	log.Printf("submitting %d commands for %d users with %d workers", len(jobs), cfg.Users, cfg.Workers)

	var sent, failed, duplicates int64
	jobChan := make(chan job, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				reply, err := c.Command(ctx, j.user, "add "+j.text)
				atomic.AddInt64(&sent, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Printf("add failed for %s: %v", j.user, err)
					}
				case strings.Contains(reply, "already have"):
					atomic.AddInt64(&duplicates, 1)
				}
			}
		}()
	}

	for _, j := range jobs {
		select {
		case <-ctx.Done():
			close(jobChan)
			wg.Wait()
			return nil, ctx.Err()
		case jobChan <- j:
		}
	}
	close(jobChan)
	wg.Wait()

	stats.CommandsSent = int(sent)
	stats.Failed = int(failed)
	stats.Duplicates = int(duplicates)

	verify(ctx, c, cfg, stats)

	stats.Elapsed = time.Since(start)
	log.Printf("done in %s: sent=%d failed=%d duplicates=%d list_mismatch=%d remove_failed=%d",
		stats.Elapsed.Round(time.Millisecond), stats.CommandsSent, stats.Failed,
		stats.Duplicates, stats.ListMismatch, stats.RemoveFailed)
	return stats, nil
}

// verify lists every user, checks the displayed count, then removes
// position 1 repeatedly and confirms the backlog grows.
func verify(ctx context.Context, c *client, cfg *Config, stats *Stats) {
	for u := 0; u < cfg.Users; u++ {
		user := userID(u)

		reply, err := c.Command(ctx, user, "list")
		if err != nil {
			stats.ListMismatch++
			continue
		}
		listed := len(strings.Split(reply, "\n"))
		if reply == "No events." {
			listed = 0
		}
		if listed != cfg.EventsPerUser {
			stats.ListMismatch++
			if cfg.Verbose {
				log.Printf("list mismatch for %s: want %d, got %d", user, cfg.EventsPerUser, listed)
			}
		}

		if _, err := c.Command(ctx, user, "remove 1"); err != nil {
			stats.RemoveFailed++
			continue
		}
		backlog, err := c.Command(ctx, user, "backlog")
		if err != nil || backlog == "Backlog is empty." {
			stats.RemoveFailed++
		}
	}
}

// generate builds a deterministic mix of undated, dated, and timed
// event texts, unique per user.
func generate(cfg *Config) []job {
	rng := rand.New(rand.NewSource(42))
	// Dates land in next year so the sweep never archives an event
	// mid-run.
	year := time.Now().Year() + 1
	jobs := make([]job, 0, cfg.Users*cfg.EventsPerUser)
	for u := 0; u < cfg.Users; u++ {
		user := userID(u)
		for e := 0; e < cfg.EventsPerUser; e++ {
			text := fmt.Sprintf("%s #%d", chores[rng.Intn(len(chores))], e)
			switch e % 3 {
			case 1:
				text = fmt.Sprintf("%s %s %d %d", text, months[rng.Intn(len(months))], 1+rng.Intn(28), year)
			case 2:
				text = fmt.Sprintf("%s %s %d %d %d:%02d", text, months[rng.Intn(len(months))],
					1+rng.Intn(28), year, 1+rng.Intn(23), rng.Intn(60))
			}
			jobs = append(jobs, job{user: user, text: text})
		}
	}
	return jobs
}

func userID(n int) string {
	return fmt.Sprintf("smoke-user-%03d", n)
}
