// Command aqctl runs the air-quality pipeline once, outside the server.
package main

func main() {
	Execute()
}
