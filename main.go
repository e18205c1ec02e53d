// The main package for the jobcrawler executable.
package main

import "github.com/JakeFAU/job-listing-crawler/cmd"

func main() {
	cmd.Execute()
}
