package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/config"
	"github.com/daniil11ru/fleettrack/cli/receiver/connector"
	"github.com/daniil11ru/fleettrack/cli/receiver/connector/implementation"
	"github.com/daniil11ru/fleettrack/cli/receiver/source/partition"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

/*
Управление секциями таблицы vehicle_locations.

Usage:
  partitions -c configs/config.yaml ensure [--from 2026-04] [--months 3]
  partitions -c configs/config.yaml list

ensure создаёт и индексирует месячные секции начиная с --from (по умолчанию текущий месяц UTC),
повторный запуск ничего не меняет. list печатает реестр секций.
*/

const monthLayout = "2006-01"

func main() {
	configFilePath := ""
	from := ""
	months := 0

	flag.StringVarP(&configFilePath, "config", "c", "", "Путь до конфигурационного файла (обязательно)")
	flag.StringVar(&from, "from", "", "Первый месяц в формате YYYY-MM, по умолчанию текущий")
	flag.IntVar(&months, "months", 0, "Количество месяцев, по умолчанию partition_provision_ahead_months + 1")
	flag.Parse()

	if configFilePath == "" {
		fmt.Println("Требуется путь до конфига, смотрите помощь (-h)")
		os.Exit(1)
	}
	if flag.NArg() != 1 {
		fmt.Println("Требуется команда ensure или list, смотрите помощь (-h)")
		os.Exit(1)
	}

	settings, err := config.New(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
	}
	log.SetLevel(settings.GetLogLevel())

	var conn connector.Connector = &implementation.Connector{}
	if err := conn.Connect(settings.Store); err != nil {
		log.Fatalf("Не удалось подключиться к базе данных: %v", err)
	}
	defer conn.Close()

	manager := partition.NewManager(conn.GetConnection())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch flag.Arg(0) {
	case "ensure":
		start, err := parseMonth(from, time.Now())
		if err != nil {
			fmt.Println("Ошибка парсинга месяца: ", from)
			os.Exit(1)
		}
		if months <= 0 {
			months = settings.PartitionProvisionAheadMonths + 1
		}

		ranges, err := manager.Ensure(ctx, start, months)
		if err != nil {
			log.Fatalf("Не удалось подготовить секции: %v", err)
		}
		printRanges(ranges)
	case "list":
		ranges, err := manager.List(ctx)
		if err != nil {
			log.Fatalf("Не удалось получить реестр секций: %v", err)
		}
		printRanges(ranges)
	default:
		fmt.Printf("Неизвестная команда %q, смотрите помощь (-h)\n", flag.Arg(0))
		os.Exit(1)
	}
}

func parseMonth(raw string, at time.Time) (time.Time, error) {
	if raw == "" {
		return types.MonthRange(at).From, nil
	}
	t, err := time.Parse(monthLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func printRanges(ranges []types.PartitionRange) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFROM\tTO\tSTATE")
	for _, r := range ranges {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.From.Format(time.RFC3339), r.To.Format(time.RFC3339), r.State)
	}
	w.Flush()
}
