// Package deckimport loads cards into a collection from markdown files,
// either from a local directory or a git repository. Parsed cards are
// fingerprinted so re-importing the same source is a no-op.
package deckimport

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParsedCard is a question/answer pair extracted from a markdown file,
// before it becomes a domain Card.
type ParsedCard struct {
	Question string
	Answer   string
}

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
)

type parseState int

const (
	seeking parseState = iota
	readingQuestion
	readingAnswer
)

// ParseFile reads a markdown file and extracts all cards.
func ParseFile(path string) ([]ParsedCard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse extracts cards from a reader. A card starts at a "Q:" line, its
// answer at the following "A:" line; "---" or the next "Q:" closes it.
// Continuation lines belong to the block they follow. Cards without a
// question are dropped.
func Parse(r io.Reader) ([]ParsedCard, error) {
	scanner := bufio.NewScanner(r)
	var cards []ParsedCard
	var current ParsedCard
	var block []string
	state := seeking

	closeBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch state {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		}
		block = nil
	}

	finishCard := func() {
		closeBlock()
		if current.Question != "" {
			cards = append(cards, current)
		}
		current = ParsedCard{}
		state = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishCard()
		case strings.HasPrefix(line, questionPrefix):
			if state != seeking {
				finishCard()
			}
			closeBlock()
			state = readingQuestion
			block = append(block, trimPrefixed(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			closeBlock()
			state = readingAnswer
			block = append(block, trimPrefixed(line, answerPrefix))
		case state != seeking:
			block = append(block, line)
		}
	}
	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func trimPrefixed(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}
