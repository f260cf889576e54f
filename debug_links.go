package main

import (
	"fmt"
	"log"

	"git.arenberg.net/steen/sitebuilder/internal/links"
)

func main() {
	proc, err := links.NewProcessor("https://www.arenberg.net")
	if err != nil {
		log.Fatalf("NewProcessor() error: %v", err)
	}

	// Relative href and src pick up the base URL
	doc := `<p>See <a href="about.html">about</a> and <img src="images/logo.png">.</p>`
	out, err := proc.Process(doc)
	if err != nil {
		log.Fatalf("Process() error: %v", err)
	}
	fmt.Printf("Relative links:\n  %s\n", out)

	// On-site absolute link stays as-is, no external attributes
	doc = `<a href="https://www.arenberg.net/archive.html">archive</a>`
	out, err = proc.Process(doc)
	if err != nil {
		log.Fatalf("Process() error: %v", err)
	}
	fmt.Printf("On-site absolute:\n  %s\n", out)

	// External link gets class, target and rel
	doc = `<a href="https://golang.org/doc/">Go docs</a>`
	out, err = proc.Process(doc)
	if err != nil {
		log.Fatalf("Process() error: %v", err)
	}
	fmt.Printf("External:\n  %s\n", out)

	// Running the output through again must change nothing
	again, err := proc.Process(out)
	if err != nil {
		log.Fatalf("Process() error: %v", err)
	}
	fmt.Printf("Idempotent: %v\n", out == again)

	// Fragments and mailto are left alone
	doc = `<a href="#top">top</a> <a href="mailto:steen@arenberg.net">mail</a>`
	out, err = proc.Process(doc)
	if err != nil {
		log.Fatalf("Process() error: %v", err)
	}
	fmt.Printf("Skipped schemes:\n  %s\n", out)

	fmt.Println("All operations completed successfully")
}
