//go:build ignore

// Package main generates a synthetic NYC taxi trip file for load testing.
// Usage: go run scripts/generate-trips.go -trips 1000000 -output testdata/trips.json
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	numTrips  = flag.Int("trips", 100000, "Number of lines to generate")
	output    = flag.String("output", "testdata/trips.json", "Output file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	malformed = flag.Float64("malformed", 0.001, "Fraction of lines that are not valid trips")
	crlf      = flag.Bool("crlf", false, "Terminate lines with \\r\\n")
)

// Manhattan-ish bounding box.
const (
	minLon, maxLon = -74.02, -73.93
	minLat, maxLat = 40.70, 40.80
)

var (
	paymentTypes = []string{"1", "2", "3", "4"}
	vendors      = []string{"1", "2"}
	flags        = []string{"N", "N", "N", "Y"}
	broken       = []string{
		`{"total_amount": 12.5`,
		`{"total_amount": "abc", "pickup_location": [-73.9, 40.7]}`,
		`not json at all`,
		`{"pickup_location": [-73.9], "dropoff_location": [-73.9, 40.7]}`,
		`{"total_amount": 3, "pickup_location": [-73.9, 40.7], "dropoff_location": [-73.9, 40.7]}`,
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	eol := "\n"
	if *crlf {
		eol = "\r\n"
	}

	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	bad := 0
	for i := 0; i < *numTrips; i++ {
		if rng.Float64() < *malformed {
			w.WriteString(broken[rng.Intn(len(broken))])
			w.WriteString(eol)
			bad++
			continue
		}
		writeTrip(w, rng, start.Add(time.Duration(i)*7*time.Second))
		w.WriteString(eol)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *output, err)
		os.Exit(1)
	}

	info, _ := f.Stat()
	fmt.Printf("Generated %d lines (%d malformed, %d bytes) in %s\n", *numTrips, bad, info.Size(), *output)
}

func writeTrip(w *bufio.Writer, rng *rand.Rand, pickup time.Time) {
	distance := 0.3 + rng.ExpFloat64()*2.5
	fare := 2.5 + distance*2.5
	tip := 0.0
	if rng.Intn(3) > 0 {
		tip = float64(int(fare*0.2*100)) / 100
	}
	tolls := 0.0
	if rng.Intn(20) == 0 {
		tolls = 5.54
	}
	extra := float64(rng.Intn(3)) * 0.5
	total := fare + tip + tolls + extra + 0.5 + 0.3
	dropoff := pickup.Add(time.Duration(distance*4*float64(time.Minute)) + time.Minute)

	fmt.Fprintf(w, `{"vendor_id":"%s","pickup_datetime":"%s","dropoff_datetime":"%s",`+
		`"passenger_count":%d,"trip_distance":%.2f,"pickup_location":[%.6f,%.6f],`+
		`"dropoff_location":[%.6f,%.6f],"rate_code_id":"1","store_and_fwd_flag":"%s",`+
		`"payment_type":"%s","fare_amount":%.2f,"extra":%.1f,"mta_tax":0.5,"tip_amount":%.2f,`+
		`"tolls_amount":%.2f,"improvement_surcharge":0.3,"total_amount":%.2f,"trip_type":"1"}`,
		vendors[rng.Intn(len(vendors))],
		pickup.Format("2006-01-02 15:04:05"),
		dropoff.Format("2006-01-02 15:04:05"),
		1+rng.Intn(6),
		distance,
		minLon+rng.Float64()*(maxLon-minLon), minLat+rng.Float64()*(maxLat-minLat),
		minLon+rng.Float64()*(maxLon-minLon), minLat+rng.Float64()*(maxLat-minLat),
		flags[rng.Intn(len(flags))],
		paymentTypes[rng.Intn(len(paymentTypes))],
		fare, extra, tip, tolls, total)
}
