// fleetvoice - voice-driven EC2 fleet administration.
// Say a region. Count. Clean up.
package main

func main() {
	Execute()
}
