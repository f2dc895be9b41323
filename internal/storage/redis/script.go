package redis

import (
	"strings"

	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

// The procedure is assembled from fragments so that the sort step and the compare
// mode are fixed when the script is compiled.
//
// ARGV: 1 glob, 2 offset, 3 size, 4 filter field, 5 filter op, 6 filter value,
// 7 sort field, 8 sort direction, 9 anchored key pattern, 10 SCAN COUNT.
// Reply: {total, key1, value1, key2, value2, ...}
const scriptPrelude = `
local glob = ARGV[1]
local offset = tonumber(ARGV[2])
local size = tonumber(ARGV[3])
local filter_field, filter_op, filter_value = ARGV[4], ARGV[5], ARGV[6]
local sort_field, sort_dir = ARGV[7], ARGV[8]
local strict = ARGV[9]
local scan_count = tonumber(ARGV[10])

local function escape(s)
  return (string.gsub(s, '[%^%$%(%)%%%.%[%]%*%+%-%?]', '%%%0'))
end

local seen = {}
local keys = {}
local cursor = '0'
repeat
  local res = redis.call('SCAN', cursor, 'MATCH', glob, 'COUNT', scan_count)
  cursor = res[1]
  for _, key in ipairs(res[2]) do
    if not seen[key] and string.find(key, strict) then
      seen[key] = true
      table.insert(keys, key)
    end
  end
until cursor == '0'
table.sort(keys)
`

const decodedFragment = `
local function finite(v)
  local t = type(v)
  if t == 'number' then
    return v == v and v ~= math.huge and v ~= -math.huge
  end
  if t == 'table' then
    for _, item in pairs(v) do
      if not finite(item) then
        return false
      end
    end
  end
  return true
end

local function prepare(key, raw)
  if type(raw) ~= 'string' or not string.find(raw, '^%s*{') then
    return nil
  end
  local ok, doc = pcall(cjson.decode, raw)
  if not ok or type(doc) ~= 'table' or not finite(doc) then
    return nil
  end
  return {key = key, raw = raw, doc = doc}
end

local function field(item, name)
  return item.doc[name]
end
`

const rawFragment = `
local function prepare(key, raw)
  if type(raw) ~= 'string' then
    return nil
  end
  return {key = key, raw = raw}
end

local function field(item, name)
  local prefix = '"' .. escape(name) .. '"%s*:%s*'
  local v = string.match(item.raw, prefix .. '"([^"]*)"')
  if v == nil then
    v = string.match(item.raw, prefix .. '([^,}%s]+)')
  end
  return v
end
`

const filterFragment = `
local function matches(item)
  if filter_field == '' then
    return true
  end
  local v = field(item, filter_field)
  if type(v) ~= 'string' then
    return false
  end
  if filter_op == 'contains' then
    return string.find(v, filter_value, 1, true) ~= nil
  elseif filter_op == 'prefix' then
    return string.sub(v, 1, #filter_value) == filter_value
  end
  return false
end

local matched = {}
for i = 1, #keys, 500 do
  local chunk = {}
  for j = i, math.min(i + 499, #keys) do
    table.insert(chunk, keys[j])
  end
  local values = redis.call('MGET', unpack(chunk))
  for j = 1, #chunk do
    local item = prepare(chunk[j], values[j])
    if item and matches(item) then
      table.insert(matched, item)
    end
  end
end
`

const sortFragment = `
local function rank(v)
  local t = type(v)
  if t == 'number' then return 1 end
  if t == 'string' then return 2 end
  if t == 'boolean' then return 3 end
  return 0
end

local function compare(a, b)
  local ra, rb = rank(a), rank(b)
  if ra ~= rb then
    if ra < rb then return -1 end
    return 1
  end
  if ra == 0 or a == b then
    return 0
  end
  if ra == 3 then
    if a then return 1 end
    return -1
  end
  if a < b then return -1 end
  return 1
end

if sort_field ~= '' then
  local desc = sort_dir == 'desc'
  for _, item in ipairs(matched) do
    item.sv = field(item, sort_field)
  end
  table.sort(matched, function(x, y)
    local c = compare(x.sv, y.sv)
    if c ~= 0 then
      if desc then return c > 0 end
      return c < 0
    end
    return x.key < y.key
  end)
end
`

const sliceFragment = `
local out = {#matched}
for i = offset + 1, math.min(offset + size, #matched) do
  table.insert(out, matched[i].key)
  table.insert(out, matched[i].raw)
end
return out
`

// buildScript composes the Lua source for spec.
func buildScript(spec types.ProcedureSpec) string {
	var b strings.Builder
	b.WriteString(scriptPrelude)
	if spec.Mode == model.ModeRaw {
		b.WriteString(rawFragment)
	} else {
		b.WriteString(decodedFragment)
	}
	b.WriteString(filterFragment)
	if spec.Sort {
		b.WriteString(sortFragment)
	}
	b.WriteString(sliceFragment)
	return b.String()
}

var luaMagic = strings.NewReplacer(
	"%", "%%", "^", "%^", "$", "%$", "(", "%(", ")", "%)", ".", "%.",
	"[", "%[", "]", "%]", "*", "%*", "+", "%+", "-", "%-", "?", "%?",
)

// luaPattern renders p as an anchored Lua pattern in which a wildcard never
// crosses the separator. SCAN MATCH globs do, so keys are re-checked with it.
func luaPattern(p keyspace.Pattern) string {
	var b strings.Builder
	b.WriteString("^")
	sep := luaMagic.Replace(keyspace.Separator)
	for i, s := range p.Segments() {
		if i > 0 {
			b.WriteString(sep)
		}
		if s.Wildcard {
			b.WriteString("[^" + sep + "]*")
		} else {
			b.WriteString(luaMagic.Replace(s.Literal))
		}
	}
	b.WriteString("$")
	return b.String()
}
