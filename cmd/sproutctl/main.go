// sproutctl talks to a running SproutWatch Command Center.
package main

func main() {
	Execute()
}
