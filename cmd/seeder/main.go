package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/lexindex"
	"github.com/poiesic/lexindex/core"
)

// A small built-in corpus of legal document chunks for local smoke testing.
var samples = []core.Document{
	{
		Content:  "The Constitution is the supreme law of the Republic. Any law inconsistent with the Constitution shall, to the extent of the inconsistency, be void.",
		Metadata: core.Metadata{core.MetaSource: "constitution/art-7.txt", core.MetaCategory: "constitution", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "All citizens are equal before law and are entitled to equal protection of law.",
		Metadata: core.Metadata{core.MetaSource: "constitution/art-27.txt", core.MetaCategory: "constitution", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "Every citizen shall have the right to move freely throughout the country, to reside and settle in any place therein and to leave and re-enter the country.",
		Metadata: core.Metadata{core.MetaSource: "constitution/art-36.txt", core.MetaCategory: "constitution", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "প্রজাতন্ত্রের সকল ক্ষমতার মালিক জনগণ; এবং জনগণের পক্ষে সেই ক্ষমতার প্রয়োগ কেবল এই সংবিধানের অধীন ও কর্তৃত্বে কার্যকর হইবে।",
		Metadata: core.Metadata{core.MetaSource: "constitution/art-7-bn.txt", core.MetaCategory: "constitution", core.MetaLanguage: "bn", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "আইনের দৃষ্টিতে সকল নাগরিক সমান এবং আইনের সমান আশ্রয় লাভের অধিকারী।",
		Metadata: core.Metadata{core.MetaSource: "constitution/art-27-bn.txt", core.MetaCategory: "constitution", core.MetaLanguage: "bn", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "This Act may be called the Contract Act. It extends to the whole of the country and shall come into force on the first day of September.",
		Metadata: core.Metadata{core.MetaSource: "acts/contract-act-s1.txt", core.MetaCategory: "acts", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "All agreements are contracts if they are made by the free consent of parties competent to contract, for a lawful consideration and with a lawful object.",
		Metadata: core.Metadata{core.MetaSource: "acts/contract-act-s10.txt", core.MetaCategory: "acts", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "Whoever commits theft shall be punished with imprisonment of either description for a term which may extend to three years, or with fine, or with both.",
		Metadata: core.Metadata{core.MetaSource: "acts/penal-code-s379.txt", core.MetaCategory: "acts", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "এই আইন জনস্বার্থে তথ্যের অবাধ প্রবাহ এবং জনগণের তথ্য অধিকার নিশ্চিত করিবার লক্ষ্যে প্রণীত হইয়াছে।",
		Metadata: core.Metadata{core.MetaSource: "acts/rti-act-bn.txt", core.MetaCategory: "acts", core.MetaLanguage: "bn", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "An Ordinance promulgated under this article shall have the same force of law as an Act of Parliament, subject to the limitations set out herein.",
		Metadata: core.Metadata{core.MetaSource: "ordinances/promulgation.txt", core.MetaCategory: "ordinances", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "The Ordinance regulates the registration of money lenders and caps the interest rates chargeable on secured and unsecured loans.",
		Metadata: core.Metadata{core.MetaSource: "ordinances/money-lenders.txt", core.MetaCategory: "ordinances", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "The appeal is allowed. The judgment and decree of the High Court Division are set aside and the suit is decreed in favour of the appellant with costs.",
		Metadata: core.Metadata{core.MetaSource: "court_judgments/civil-appeal-42.txt", core.MetaCategory: "court_judgments", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "Held: preventive detention without communication of grounds violates the fundamental rights guaranteed to the detainee and the detention order is declared to have been made without lawful authority.",
		Metadata: core.Metadata{core.MetaSource: "court_judgments/writ-118.txt", core.MetaCategory: "court_judgments", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "আদালত রায় প্রদান করিলেন যে, বিবাদীর বিরুদ্ধে আনীত অভিযোগ সন্দেহাতীতভাবে প্রমাণিত হয় নাই, সুতরাং বিবাদী খালাস পাইবেন।",
		Metadata: core.Metadata{core.MetaSource: "court_judgments/criminal-appeal-bn.txt", core.MetaCategory: "court_judgments", core.MetaLanguage: "bn", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "No person shall be deprived of life or personal liberty save in accordance with law.",
		Metadata: core.Metadata{core.MetaSource: "constitution/art-32.txt", core.MetaCategory: "constitution", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
	{
		Content:  "A contract which ceases to be enforceable by law becomes void when it ceases to be enforceable.",
		Metadata: core.Metadata{core.MetaSource: "acts/contract-act-s2j.txt", core.MetaCategory: "acts", core.MetaLanguage: "en", core.MetaChunkIndex: "0"},
	},
}

var (
	seedFileName = flag.String("src", "", "JSON-lines file of seed documents")
	dataDir      = flag.String("data", "./lexindex_data", "data directory for the index")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// documentsFromFile returns an iterator over JSON-lines documents in a file.
func documentsFromFile(filename string) (iter.Seq[core.Document], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(core.Document) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var doc struct {
				Content  string        `json:"content"`
				Metadata core.Metadata `json:"metadata"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
				slog.Warn("skipping unparseable line", "err", err)
				continue
			}
			if !yield(core.Document{Content: doc.Content, Metadata: doc.Metadata}) {
				return
			}
		}
	}, nil
}

// documentsFromSlice returns an iterator over a slice of documents.
func documentsFromSlice(docs []core.Document) iter.Seq[core.Document] {
	return func(yield func(core.Document) bool) {
		for _, doc := range docs {
			if !yield(doc) {
				return
			}
		}
	}
}

func main() {
	engine, err := lexindex.New(*dataDir)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := context.Background()

	var source iter.Seq[core.Document]
	if seedFileName != nil && *seedFileName != "" {
		source, err = documentsFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = documentsFromSlice(samples)
	}

	var docs []core.Document
	for doc := range source {
		docs = append(docs, doc)
	}

	stats, err := engine.BuildIndex(ctx, docs)
	if err != nil {
		panic(err)
	}

	slog.Info("seeded index",
		"documents", stats.TotalDocuments,
		"dimension", stats.Dimension,
		"categories", stats.Categories,
		"languages", stats.Languages)
}
