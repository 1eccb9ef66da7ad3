package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sstirlin/leapsec"
	"github.com/sstirlin/leapsec/tai64"
)

// Prints the current instant on every supported time scale and checks the
// conversion round trips, in the spirit of a smoke test against live data.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg := leapsec.Config{}
	if v := os.Getenv("LEAPSEC_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}
	if v := os.Getenv("LEAPSEC_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	ctx := context.Background()
	conv, err := leapsec.NewConverter(ctx, cfg, logger)
	if err != nil {
		fmt.Println("ERROR loading leap-second table:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded leap-second table: %d entries, fetched %v\n",
		conv.Table().Len(), conv.Table().FetchedAt.UTC().Format(time.RFC3339))

	utc := time.Now().UTC()
	fmt.Printf("UTC    %v\n", utc.Format(time.RFC3339Nano))

	tai, err := conv.UTCToTAI(ctx, utc)
	if err != nil {
		fmt.Println("ERROR converting to TAI:", err)
		os.Exit(1)
	}
	fmt.Printf("TAI    %v  (%s)\n", tai.Format(time.RFC3339Nano), tai64.FromTAI(tai))
	back, err := conv.TAIToUTC(ctx, tai)
	if err != nil {
		fmt.Println("ERROR converting back to UTC:", err)
		os.Exit(1)
	}
	if !back.Equal(utc) {
		fmt.Println("ERROR: UTC <-> TAI round trip mismatch:", back)
		os.Exit(1)
	}

	unix := conv.UTCToUnix(utc)
	fmt.Printf("Unix   %.9f\n", unix)
	// Float seconds cannot carry full nanosecond precision at this magnitude.
	if conv.UnixToUTC(unix).Sub(utc).Abs() > time.Microsecond {
		fmt.Println("ERROR: UTC <-> Unix round trip mismatch:", conv.UnixToUTC(unix))
		os.Exit(1)
	}

	gps, err := conv.TAIToGPS(ctx, tai)
	if err != nil {
		fmt.Println("ERROR converting to GPS:", err)
		os.Exit(1)
	}
	fmt.Printf("GPS    %.9f\n", gps)
	gpsTAI, err := conv.GPSToTAI(ctx, gps)
	if err != nil {
		fmt.Println("ERROR converting GPS back to TAI:", err)
		os.Exit(1)
	}
	if gpsTAI.Sub(tai).Abs() > time.Microsecond {
		fmt.Println("ERROR: TAI <-> GPS round trip mismatch:", gpsTAI)
		os.Exit(1)
	}

	gpsCal := conv.GPSToGPSCalendar(gps)
	fmt.Printf("GPScal %v\n", gpsCal.Format(time.RFC3339Nano))
	if diff := conv.GPSCalendarToGPS(gpsCal) - gps; diff > 1e-6 || diff < -1e-6 {
		fmt.Println("ERROR: GPS <-> GPS calendar round trip mismatch:", diff)
		os.Exit(1)
	}

	fmt.Println("All round trips OK")
}
