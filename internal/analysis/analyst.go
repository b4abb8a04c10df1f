package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lucafauri/mnemos/internal/agent"
	"github.com/lucafauri/mnemos/internal/store"
	"github.com/lucafauri/mnemos/internal/textutil"
)

// Analyst derives conversation-level signals from accumulated history. It is
// purely lexical: pattern tables and counting, no model calls.
type Analyst struct {
	interval int
}

// NewAnalyst builds an analyst that is due every interval exchanges.
func NewAnalyst(interval int) *Analyst {
	if interval < 1 {
		interval = 5
	}
	return &Analyst{interval: interval}
}

func (a *Analyst) Name() string { return "analyst" }

// Due reports whether analysis should run after the given number of
// completed exchanges.
func (a *Analyst) Due(exchanges int) bool {
	return exchanges > 0 && exchanges%a.interval == 0
}

// Topic is one recurring conversation subject.
type Topic struct {
	Word      string  `json:"word"`
	Count     int     `json:"count"`
	Relevance float64 `json:"relevance"`
}

// Report is the analyst's typed payload.
type Report struct {
	Sentiment       string   `json:"sentiment"`
	Confidence      float64  `json:"confidence"`
	Topics          []Topic  `json:"topics"`
	Patterns        []string `json:"patterns"`
	Engagement      string   `json:"engagement"`
	EngagementScore float64  `json:"engagement_score"`
	MemoryGaps      []string `json:"memory_gaps"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

var positiveLexicon = map[string]struct{}{
	"love": {}, "great": {}, "awesome": {}, "excellent": {}, "happy": {},
	"wonderful": {}, "fantastic": {}, "good": {}, "enjoy": {}, "excited": {},
	"amazing": {}, "perfect": {}, "thanks": {}, "helpful": {},
}

var negativeLexicon = map[string]struct{}{
	"hate": {}, "terrible": {}, "awful": {}, "sad": {}, "angry": {},
	"frustrated": {}, "bad": {}, "annoying": {}, "worried": {}, "stressed": {},
	"disappointed": {}, "upset": {}, "wrong": {}, "problem": {},
}

var engagementIndicators = map[string]struct{}{
	"really": {}, "interesting": {}, "curious": {}, "wow": {}, "definitely": {},
	"absolutely": {}, "love": {}, "excited": {}, "tell": {}, "more": {},
	"why": {}, "how": {}, "what": {},
}

const (
	topicMinLength     = 4
	topicLimit         = 5
	topicMinRelevance  = 0.10
	repetitionMinCount = 3

	weightLength     = 0.4
	weightIndicators = 0.3
	weightQuestions  = 0.3

	engagementHigh   = 0.6
	engagementMedium = 0.3
)

// Analyze inspects the user side of the history. It cannot fail; degenerate
// input yields a neutral report.
func (a *Analyst) Analyze(history []agent.Exchange, memories []store.MemoryRecord) (Report, agent.Result) {
	started := time.Now()

	var userMessages []string
	for _, ex := range history {
		if ex.Role == "user" {
			userMessages = append(userMessages, ex.Content)
		}
	}
	if len(userMessages) == 0 {
		return Report{Sentiment: "neutral", Engagement: "low"}, agent.Succeed(0, time.Since(started))
	}

	sentiment, confidence := scoreSentiment(userMessages)
	topics := topTopics(userMessages)
	patterns := detectPatterns(userMessages, topics)
	engagement, engagementScore := scoreEngagement(userMessages)
	gaps := memoryGaps(topics, memories)

	rep := Report{
		Sentiment:       sentiment,
		Confidence:      confidence,
		Topics:          topics,
		Patterns:        patterns,
		Engagement:      engagement,
		EngagementScore: engagementScore,
		MemoryGaps:      gaps,
	}
	rep.Insights = buildInsights(rep, len(userMessages))
	rep.Recommendations = buildRecommendations(rep)

	return rep, agent.Succeed(0, time.Since(started))
}

func scoreSentiment(messages []string) (string, float64) {
	positive, negative, total := 0, 0, 0
	for _, msg := range messages {
		for _, w := range textutil.Words(msg) {
			total++
			if _, ok := positiveLexicon[w]; ok {
				positive++
			}
			if _, ok := negativeLexicon[w]; ok {
				negative++
			}
		}
	}
	if total == 0 {
		return "neutral", 0
	}

	indicators := positive + negative
	confidence := math.Min(1, float64(indicators)/float64(total)*10)
	confidence = math.Round(confidence*1000) / 1000

	switch {
	case indicators == 0:
		return "neutral", 0
	case positive > 0 && negative > 0 && ratioWithin(positive, negative, 2):
		return "mixed", confidence
	case positive > negative:
		return "positive", confidence
	case negative > positive:
		return "negative", confidence
	default:
		return "mixed", confidence
	}
}

// ratioWithin reports whether neither count dominates the other by factor.
func ratioWithin(a, b, factor int) bool {
	return a < b*factor && b < a*factor
}

func topTopics(messages []string) []Topic {
	counts := make(map[string]int)
	for _, msg := range messages {
		seen := make(map[string]struct{})
		for _, w := range textutil.Words(msg) {
			if len(w) < topicMinLength || textutil.IsStopword(w) {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			counts[w]++
		}
	}

	var topics []Topic
	for word, count := range counts {
		relevance := float64(count) / float64(len(messages))
		if relevance >= topicMinRelevance {
			topics = append(topics, Topic{Word: word, Count: count, Relevance: math.Round(relevance*1000) / 1000})
		}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Word < topics[j].Word
	})
	if len(topics) > topicLimit {
		topics = topics[:topicLimit]
	}
	return topics
}

func detectPatterns(messages []string, topics []Topic) []string {
	var patterns []string

	questions := 0
	for _, msg := range messages {
		if strings.Contains(msg, "?") {
			questions++
		}
	}
	if float64(questions)/float64(len(messages)) >= 0.5 {
		patterns = append(patterns, "question_heavy")
	}

	for _, t := range topics {
		if t.Count >= repetitionMinCount {
			patterns = append(patterns, "topic_repetition")
			break
		}
	}

	if indicatorDensity(messages) >= 0.15 {
		patterns = append(patterns, "high_engagement_indicators")
	}
	return patterns
}

func indicatorDensity(messages []string) float64 {
	hits, total := 0, 0
	for _, msg := range messages {
		for _, w := range textutil.Words(msg) {
			total++
			if _, ok := engagementIndicators[w]; ok {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func scoreEngagement(messages []string) (string, float64) {
	totalWords := 0
	questions := 0
	for _, msg := range messages {
		totalWords += len(textutil.Words(msg))
		if strings.Contains(msg, "?") {
			questions++
		}
	}
	avgLength := float64(totalWords) / float64(len(messages))
	lengthScore := math.Min(1, avgLength/20)
	questionScore := float64(questions) / float64(len(messages))

	score := weightLength*lengthScore +
		weightIndicators*math.Min(1, indicatorDensity(messages)*5) +
		weightQuestions*questionScore
	score = math.Round(score*1000) / 1000

	switch {
	case score >= engagementHigh:
		return "high", score
	case score >= engagementMedium:
		return "medium", score
	default:
		return "low", score
	}
}

// memoryGaps lists conversation topics absent from every stored memory.
func memoryGaps(topics []Topic, memories []store.MemoryRecord) []string {
	var gaps []string
	for _, t := range topics {
		covered := false
		for _, m := range memories {
			if strings.Contains(strings.ToLower(m.Content), t.Word) {
				covered = true
				break
			}
			for _, tag := range m.Tags {
				if strings.EqualFold(tag, t.Word) {
					covered = true
					break
				}
			}
			if covered {
				break
			}
		}
		if !covered {
			gaps = append(gaps, t.Word)
		}
	}
	return gaps
}

func buildInsights(rep Report, messageCount int) []string {
	var insights []string
	if len(rep.Topics) > 0 {
		insights = append(insights, fmt.Sprintf("conversation centers on %q across %d messages", rep.Topics[0].Word, messageCount))
	}
	if rep.Sentiment != "neutral" {
		insights = append(insights, fmt.Sprintf("overall sentiment reads %s (confidence %.2f)", rep.Sentiment, rep.Confidence))
	}
	insights = append(insights, fmt.Sprintf("engagement is %s (score %.2f)", rep.Engagement, rep.EngagementScore))
	return insights
}

func buildRecommendations(rep Report) []string {
	var recs []string
	for _, gap := range rep.MemoryGaps {
		recs = append(recs, fmt.Sprintf("ask a follow-up about %q to capture it as a memory", gap))
	}
	if rep.Engagement == "low" {
		recs = append(recs, "ask an open-ended question to raise engagement")
	}
	if rep.Sentiment == "negative" {
		recs = append(recs, "acknowledge the user's frustration before continuing")
	}
	for _, p := range rep.Patterns {
		if p == "question_heavy" {
			recs = append(recs, "offer a proactive summary, the user is asking many questions")
			break
		}
	}
	return recs
}
