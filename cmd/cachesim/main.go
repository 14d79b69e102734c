// Command cachesim replays memory access traces against a simulated cache
// hierarchy and reports the cost of every access.
//
// Usage:
//
//	cachesim run [flags] <trace>
//	cachesim config [flags]
//
// Settings can also come from a .env file in the working directory:
//
//	CACHESIM_CONFIG        hierarchy config file used when --config is not set
//	CACHESIM_MONITOR_PORT  port of the monitoring server
package main

func main() {
	Execute()
}
