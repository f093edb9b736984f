// Command cvflow runs, inspects and serves node-graph pipelines.
package main

func main() {
	Execute()
}
