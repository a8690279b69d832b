package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
)

// PluginRequest and PluginResponse mirror the shape internal/plugin/plugin.go
// encodes and decodes on the host side: one newline-delimited JSON
// request per line on stdin, one response per line on stdout.
type PluginRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type PluginResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

var (
	clients     = make(map[string]*dynamodb.Client)
	clientsLock sync.Mutex
)

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req PluginRequest
		if err := json.Unmarshal(line, &req); err != nil {
			encoder.Encode(PluginResponse{Error: fmt.Sprintf("parse error: %v", err)})
			continue
		}

		res, err := handleRequest(req)
		response := PluginResponse{Result: res}
		if err != nil {
			response.Error = err.Error()
		}
		if err := encoder.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode response: %v\n", err)
		}
	}
}

// handleRequest dispatches the two table-backed operations this plugin
// exposes plus the connection bootstrap every plugin needs.
func handleRequest(req PluginRequest) (interface{}, error) {
	switch req.Method {
	case "connect":
		return handleConnect(req.Params)
	case "stoor_afgeleë":
		return handleStoorAfgelee(req.Params)
	case "laai_afgeleë":
		return handleLaaiAfgelee(req.Params)
	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func handleConnect(params []interface{}) (interface{}, error) {
	options := make(map[string]interface{})
	if len(params) >= 1 {
		if m, ok := params[0].(map[string]interface{}); ok {
			options = m
		}
	}

	region := "us-east-1"
	if r, ok := options["region"].(string); ok {
		region = r
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %v", err)
	}

	client := dynamodb.NewFromConfig(cfg)
	clientID := uuid.New().String()

	clientsLock.Lock()
	clients[clientID] = client
	clientsLock.Unlock()

	return clientID, nil
}

// handleStoorAfgelee snapshots one named value into a DynamoDB item
// shaped {sleutel, waarde, id}. Params: [clientId, table, sleutel, waarde].
func handleStoorAfgelee(params []interface{}) (interface{}, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("expected client_id, table, sleutel, waarde")
	}
	clientID, _ := params[0].(string)
	tableName, _ := params[1].(string)
	sleutel, _ := params[2].(string)
	waarde := params[3]

	client := getClient(clientID)
	if client == nil {
		return nil, fmt.Errorf("client not found: %s", clientID)
	}

	item := map[string]interface{}{
		"sleutel": sleutel,
		"waarde":  waarde,
		"id":      uuid.New().String(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %v", err)
	}

	_, err = client.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	if err != nil {
		return nil, err
	}
	return true, nil
}

// handleLaaiAfgelee restores the value last stored under sleutel, or nil
// if nothing was ever stored there. Params: [clientId, table, sleutel].
func handleLaaiAfgelee(params []interface{}) (interface{}, error) {
	if len(params) < 3 {
		return nil, fmt.Errorf("expected client_id, table, sleutel")
	}
	clientID, _ := params[0].(string)
	tableName, _ := params[1].(string)
	sleutel, _ := params[2].(string)

	client := getClient(clientID)
	if client == nil {
		return nil, fmt.Errorf("client not found: %s", clientID)
	}

	avKey, err := attributevalue.MarshalMap(map[string]interface{}{"sleutel": sleutel})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %v", err)
	}

	out, err := client.GetItem(context.TODO(), &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       avKey,
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	var resMap map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &resMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %v", err)
	}
	return resMap["waarde"], nil
}

func getClient(id string) *dynamodb.Client {
	clientsLock.Lock()
	defer clientsLock.Unlock()
	return clients[id]
}
