package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

/*
Генератор отчётов о местоположении.

Отправляет серию отчётов одного транспорта, смещая каждую следующую точку на --step градусов к северу.

Usage:
  --vid int
    	Идентификатор транспорта (обязательно)
  --lat float, --lng float
    	Первая точка
  --speed float, --heading float, --status string
  --time string
    	Метка времени первой точки в формате RFC 3339, по умолчанию текущее время
  --count int
    	Количество отчётов, по умолчанию 1
  --rate float
    	Отчётов в секунду, по умолчанию 1
  --server string
    	Адрес HTTP API (default "http://localhost:8080")
  --mqtt string
    	Адрес MQTT-брокера, если задан, отчёты публикуются в fleet/vehicle/<vid>/location

Example

```
./report-gen --vid 1 --lat 25.1972 --lng 55.2744 --speed 40 --count 10 --step 0.001
```
*/

type report struct {
	VehicleID  int64   `json:"vehicleId"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lng"`
	Speed      float64 `json:"speed"`
	Heading    float64 `json:"heading"`
	Status     string  `json:"status"`
	RecordedAt string  `json:"recordedAt"`
}

type sender interface {
	Send(ctx context.Context, r report) error
}

type httpSender struct {
	client *http.Client
	url    string
}

func (s *httpSender) Send(ctx context.Context, r report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/api/vehicle/location", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	answer, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер ответил %d: %s", resp.StatusCode, answer)
	}
	return nil
}

type mqttSender struct {
	client mqtt.Client
}

func (s *mqttSender) Send(_ context.Context, r report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	token := s.client.Publish(fmt.Sprintf("fleet/vehicle/%d/location", r.VehicleID), 1, false, body)
	token.Wait()
	return token.Error()
}

// series строит count отчётов, смещая широту на step и время на interval
func series(first report, start time.Time, count int, step float64, interval time.Duration) []report {
	out := make([]report, 0, count)
	for i := 0; i < count; i++ {
		r := first
		r.Latitude = first.Latitude + float64(i)*step
		r.RecordedAt = start.Add(time.Duration(i) * interval).UTC().Format(time.RFC3339Nano)
		out = append(out, r)
	}
	return out
}

func main() {
	first := report{}
	ts := ""
	count := 0
	step := 0.0
	perSecond := 0.0
	server := ""
	broker := ""

	flag.Int64Var(&first.VehicleID, "vid", 0, "Идентификатор транспорта (обязательно)")
	flag.Float64Var(&first.Latitude, "lat", 0, "Широта")
	flag.Float64Var(&first.Longitude, "lng", 0, "Долгота")
	flag.Float64Var(&first.Speed, "speed", 0, "Скорость")
	flag.Float64Var(&first.Heading, "heading", 0, "Курс в градусах [0, 360)")
	flag.StringVar(&first.Status, "status", "moving", "Статус: moving, idling, stopped, active")
	flag.StringVar(&ts, "time", "", "Метка времени первой точки в формате RFC 3339")
	flag.IntVar(&count, "count", 1, "Количество отчётов")
	flag.Float64Var(&step, "step", 0, "Смещение широты между отчётами в градусах")
	flag.Float64Var(&perSecond, "rate", 1, "Отчётов в секунду")
	flag.StringVar(&server, "server", "http://localhost:8080", "Адрес HTTP API")
	flag.StringVar(&broker, "mqtt", "", "Адрес MQTT-брокера, например tcp://localhost:1883")

	flag.Parse()

	if first.VehicleID == 0 {
		fmt.Println("Требуется идентификатор транспорта, смотрите помощь (-h)")
		os.Exit(1)
	}
	if count <= 0 || perSecond <= 0 {
		fmt.Println("Количество отчётов и частота должны быть положительными")
		os.Exit(1)
	}

	start := time.Now()
	if ts != "" {
		var err error
		start, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			fmt.Println("Ошибка парсинга метки времени: ", ts)
			os.Exit(1)
		}
	}

	var s sender = &httpSender{client: &http.Client{Timeout: 5 * time.Second}, url: server}
	if broker != "" {
		client := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(broker).SetClientID(fmt.Sprintf("report-gen-%d", first.VehicleID)))
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			fmt.Println("Ошибка подключения к MQTT-брокеру: ", token.Error())
			os.Exit(1)
		}
		defer client.Disconnect(250)
		s = &mqttSender{client: client}
	}

	interval := time.Duration(float64(time.Second) / perSecond)
	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	ctx := context.Background()

	failed := 0
	for i, r := range series(first, start, count, step, interval) {
		if err := limiter.Wait(ctx); err != nil {
			fmt.Println("Ошибка ожидания: ", err)
			os.Exit(1)
		}
		if err := s.Send(ctx, r); err != nil {
			failed++
			fmt.Printf("Отчёт %d не принят: %v\n", i+1, err)
			continue
		}
		fmt.Printf("Отчёт %d отправлен: %.6f, %.6f\n", i+1, r.Latitude, r.Longitude)
	}

	if failed > 0 {
		os.Exit(2)
	}
}
