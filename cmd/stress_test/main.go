package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type item struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

func main() {
	app := &cli.App{
		Name:  "stress_test",
		Usage: "fire concurrent stock reductions at a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "http://localhost:8080"},
			&cli.IntFlag{Name: "stock", Value: 20},
			&cli.IntFlag{Name: "requests", Value: 50},
			&cli.IntFlag{Name: "retries", Value: 20, Usage: "attempts per request on 409"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("stress test failed")
	}
}

func run(c *cli.Context) error {
	base := c.String("addr")
	stock := c.Int("stock")
	total := c.Int("requests")
	retries := c.Int("retries")
	client := &http.Client{Timeout: 10 * time.Second}

	var created item
	status, err := call(client, http.MethodPost, base+"/api/products", map[string]interface{}{
		"name":     "stress-" + uuid.NewString()[:8],
		"price":    1.0,
		"quantity": stock,
	}, &created)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return errors.Errorf("create item: status %d", status)
	}

	var succeeded, rejected, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := map[string]interface{}{
				"items": []map[string]interface{}{{"item_id": created.ID, "quantity": 1}},
			}
			for attempt := 0; attempt < retries; attempt++ {
				status, err := call(client, http.MethodPost, base+"/api/stock/reduce", body, nil)
				if err != nil {
					log.Error().Err(err).Msg("request failed")
					return
				}
				switch status {
				case http.StatusOK:
					succeeded.Add(1)
					return
				case http.StatusConflict:
					conflicts.Add(1)
					continue
				default:
					rejected.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	var final item
	if _, err := call(client, http.MethodGet, fmt.Sprintf("%s/api/products/%d", base, created.ID), nil, &final); err != nil {
		return err
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Item:             %d\n", created.ID)
	fmt.Printf("Initial Stock:    %d\n", stock)
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Successful:       %d\n", succeeded.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Conflicts:        %d\n", conflicts.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Final Stock:      %d\n", final.Quantity)
	fmt.Println("==========================================")

	expected := stock
	if total < stock {
		expected = total
	}
	if int(succeeded.Load()) != expected || final.Quantity != stock-expected {
		return errors.Errorf("expected %d successes and stock %d, got %d and %d",
			expected, stock-expected, succeeded.Load(), final.Quantity)
	}
	fmt.Println("PASS")
	return nil
}

func call(client *http.Client, method, url string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, errors.Wrap(err, "decode response")
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, errors.Wrap(err, "decode data")
		}
	}
	return resp.StatusCode, nil
}
