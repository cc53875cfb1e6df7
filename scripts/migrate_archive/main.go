package main

import (
	"flag"
	"log"
	"strings"

	"github.com/mahaj/room-relay/pkg/archive"
	"github.com/mahaj/room-relay/pkg/config"
)

func main() {
	cfg := config.Load()
	hosts := flag.String("hosts", strings.Join(cfg.ScyllaHosts, ","), "comma-separated scylla hosts")
	keyspace := flag.String("keyspace", cfg.ScyllaKeyspace, "archive keyspace")
	drop := flag.Bool("drop", false, "drop room_messages before recreating it")
	flag.Parse()

	hostList := strings.Split(*hosts, ",")

	if *drop {
		session, err := archive.NewSession(hostList, *keyspace)
		if err != nil {
			log.Fatalf("Failed to connect to ScyllaDB: %v", err)
		}
		log.Println("Dropping table room_messages...")
		err = session.Query("DROP TABLE IF EXISTS room_messages").Exec()
		session.Close()
		if err != nil {
			log.Fatalf("Failed to drop table: %v", err)
		}
	}

	if err := archive.EnsureSchema(hostList, *keyspace); err != nil {
		log.Fatal(err)
	}

	log.Printf("Keyspace %s and table room_messages ready", *keyspace)
}
