// Command arbscan finds cross-venue arbitrage between Polymarket and Kalshi.
// It serves the scan API, runs a single scan, or scans on an interval.
package main

func main() {
	Execute()
}
